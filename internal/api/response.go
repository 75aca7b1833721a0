package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/storage"
	"solana-wallet-engine/internal/throughput"
	"solana-wallet-engine/internal/wallet"
)

// Response codes carried in the envelope alongside the HTTP status.
const (
	CodeOK              = 200
	CodeDefaultError    = 40000
	CodeNotFound        = 40400
	CodeValidateError   = 42200
	CodeTooManyRequests = 42900
	CodeServerError     = 50000
	CodeUnavailable     = 50300
)

// Response is the envelope of every API reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func writeJSON(rw http.ResponseWriter, status int, res Response) {
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(res)
}

func ok(rw http.ResponseWriter, data interface{}) {
	writeJSON(rw, http.StatusOK, Response{Code: CodeOK, Message: "ok", Data: data})
}

func fail(rw http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(rw, status, Response{Code: code, Message: err.Error()})
}

// classify maps an engine error to an HTTP status and envelope code.
func classify(err error) (int, int) {
	var failed *domain.FailedError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrSigning),
		errors.Is(err, domain.ErrUnsupportedSwapEnvelope),
		errors.Is(err, throughput.ErrInvalidWindow),
		errors.Is(err, storage.ErrInvalidInput):
		return http.StatusUnprocessableEntity, CodeValidateError
	case errors.Is(err, domain.ErrWalletNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, storage.ErrLockHeld):
		return http.StatusTooManyRequests, CodeTooManyRequests
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrWalletDisabled),
		errors.As(err, &failed):
		return http.StatusBadRequest, CodeDefaultError
	case errors.Is(err, wallet.ErrSwapUnavailable), domain.IsRetryable(err):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeServerError
	}
}
