package main

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"solana-wallet-engine/internal/executor"
	"solana-wallet-engine/internal/keys"
	"solana-wallet-engine/internal/txbuilder"
	"solana-wallet-engine/internal/wallet"
)

var balance = cli.Command{
	Name:      "balance",
	Usage:     "show the balance of an address (defaults to the keypair's).",
	ArgsUsage: "[address]",
	Action:    balanceAction,
}

func balanceAction(ctx *cli.Context) error {
	var address sol.PublicKey
	if ctx.Args().Present() {
		a, err := txbuilder.ParseAddress(ctx.Args().First())
		if err != nil {
			return err
		}
		address = a
	} else {
		kp, err := loadSigner(ctx)
		if err != nil {
			return err
		}
		address = kp.PublicKey()
	}

	svc, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	lamports, err := svc.GetBalance(ctx.Context, address)
	if err != nil {
		return err
	}
	printRespJSON(map[string]interface{}{
		"address":  address.String(),
		"lamports": lamports,
		"sol":      lamportsToSOL(lamports),
	})
	return nil
}

var airdrop = cli.Command{
	Name:  "airdrop",
	Usage: "request SOL from the cluster faucet.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "to",
			Usage: "recipient address (defaults to the keypair's)",
		},
		&cli.StringFlag{
			Name:  "amount",
			Usage: "amount in SOL",
			Value: "1",
		},
	},
	Action: airdropAction,
}

func airdropAction(ctx *cli.Context) error {
	lamports, err := solToLamports(ctx.String("amount"))
	if err != nil {
		return err
	}
	to, err := recipientOrSigner(ctx, ctx.String("to"))
	if err != nil {
		return err
	}

	svc, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	flight, err := svc.Airdrop(ctx.Context, to, lamports)
	return printFlight(flight, err)
}

var transfer = cli.Command{
	Name:  "transfer",
	Usage: "send SOL from the keypair to an address.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "to",
			Usage:    "recipient address",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "amount",
			Usage:    "amount in SOL",
			Required: true,
		},
	},
	Action: transferAction,
}

func transferAction(ctx *cli.Context) error {
	lamports, err := solToLamports(ctx.String("amount"))
	if err != nil {
		return err
	}
	to, err := txbuilder.ParseAddress(ctx.String("to"))
	if err != nil {
		return err
	}
	kp, err := loadSigner(ctx)
	if err != nil {
		return err
	}

	svc, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	flight, err := svc.Transfer(ctx.Context, kp, to, lamports)
	return printFlight(flight, err)
}

var swapCmd = cli.Command{
	Name:  "swap",
	Usage: "swap one token for another through the quote service.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "from",
			Usage:    "input token mint",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "output token mint",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "amount",
			Usage:    "input amount in token units",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "slippage",
			Usage: "maximum slippage in percent",
			Value: "1",
		},
		&cli.StringFlag{
			Name:    "quote_endpoint",
			Usage:   "swap quote service URL",
			Value:   "https://swap.solxtence.com/swap",
			EnvVars: []string{"WALLET_SWAP_QUOTE_ENDPOINT"},
		},
		&cli.DurationFlag{
			Name:  "quote_timeout",
			Usage: "quote request timeout",
			Value: 10 * time.Second,
		},
	},
	Action: swapAction,
}

func swapAction(ctx *cli.Context) error {
	amount, err := decimal.NewFromString(ctx.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	slippage, err := decimal.NewFromString(ctx.String("slippage"))
	if err != nil {
		return fmt.Errorf("invalid slippage: %w", err)
	}
	kp, err := loadSigner(ctx)
	if err != nil {
		return err
	}

	quotes := newQuoteSource(ctx.String("quote_endpoint"), ctx.Duration("quote_timeout"))
	svc, cleanup, err := newService(ctx, wallet.WithQuoteSource(quotes))
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Swap(ctx.Context, kp, ctx.String("from"), ctx.String("to"), amount, slippage)
	if err != nil {
		if res != nil && res.Flight != nil {
			_ = printFlight(res.Flight, nil)
		}
		return err
	}
	printRespJSON(map[string]interface{}{
		"signature":    res.Flight.Signature.String(),
		"state":        res.Flight.State.String(),
		"swap_details": res.Quote.SwapDetails,
	})
	return nil
}

var tps = cli.Command{
	Name:  "tps",
	Usage: "estimate user transactions per second over recent blocks.",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "window",
			Usage: "window of block time in seconds",
			Value: 60,
		},
	},
	Action: tpsAction,
}

func tpsAction(ctx *cli.Context) error {
	svc, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sample, err := svc.EstimateThroughput(ctx.Context, ctx.Int64("window"))
	if err != nil {
		return err
	}
	printRespJSON(map[string]interface{}{
		"head_slot":         sample.HeadSlot,
		"blocks_scanned":    sample.BlocksScanned,
		"user_transactions": sample.UserTransactions,
		"vote_transactions": sample.VoteTransactions,
		"tps":               sample.Rate,
	})
	return nil
}

var keygen = cli.Command{
	Name:  "keygen",
	Usage: "generate a keypair file from a new or given BIP-39 mnemonic.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "outfile",
			Usage: "where to write the keypair (defaults to --keypair)",
		},
		&cli.IntFlag{
			Name:  "words",
			Usage: "mnemonic length: 12, 15, 18, 21 or 24 words",
			Value: 12,
		},
		&cli.StringFlag{
			Name:  "passphrase",
			Usage: "optional BIP-39 passphrase",
		},
		&cli.StringFlag{
			Name:  "mnemonic",
			Usage: "recover from this phrase instead of generating one",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "overwrite an existing file",
		},
	},
	Action: keygenAction,
}

func keygenAction(ctx *cli.Context) error {
	path := ctx.String("outfile")
	if path == "" {
		path = ctx.String("keypair")
	}
	if err := checkOverwrite(path, ctx.Bool("force")); err != nil {
		return err
	}

	mnemonic := ctx.String("mnemonic")
	if mnemonic == "" {
		m, err := keys.NewMnemonic(ctx.Int("words"))
		if err != nil {
			return err
		}
		mnemonic = m
	}
	kp, err := keys.FromMnemonic(mnemonic, ctx.String("passphrase"))
	if err != nil {
		return err
	}
	if err := keys.WriteKeypairFile(path, kp); err != nil {
		return err
	}
	printRespJSON(map[string]string{
		"mnemonic":   mnemonic,
		"public_key": kp.PublicKey().String(),
		"outfile":    path,
	})
	return nil
}

// checkOverwrite refuses to replace any existing file, readable as a keypair or not.
func checkOverwrite(path string, force bool) error {
	if force {
		return nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("check %s: %w", path, err)
	}
}

var cluster = cli.Command{
	Name:   "cluster",
	Usage:  "show the node version and the cluster clock.",
	Action: clusterAction,
}

func clusterAction(ctx *cli.Context) error {
	svc, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := svc.ClusterInfo(ctx.Context)
	if err != nil {
		return err
	}
	printRespJSON(map[string]interface{}{
		"version":     info.Version,
		"feature_set": info.FeatureSet,
		"slot":        info.Slot,
		"time":        info.Time().Format("2006-01-02 15:04:05"),
	})
	return nil
}

var supply = cli.Command{
	Name:   "supply",
	Usage:  "show total, circulating and non-circulating SOL supply.",
	Action: supplyAction,
}

func supplyAction(ctx *cli.Context) error {
	svc, cleanup, err := newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := svc.GetSupply(ctx.Context)
	if err != nil {
		return err
	}
	printRespJSON(map[string]interface{}{
		"total":           lamportsToSOL(s.Total),
		"circulating":     lamportsToSOL(s.Circulating),
		"non_circulating": lamportsToSOL(s.NonCirculating),
	})
	return nil
}

func recipientOrSigner(ctx *cli.Context, text string) (sol.PublicKey, error) {
	if text != "" {
		return txbuilder.ParseAddress(text)
	}
	kp, err := loadSigner(ctx)
	if err != nil {
		return sol.PublicKey{}, err
	}
	return kp.PublicKey(), nil
}

func printFlight(flight *executor.Flight, err error) error {
	if flight != nil {
		res := map[string]interface{}{
			"state": flight.State.String(),
			"polls": flight.Polls,
		}
		if flight.Signature != (sol.Signature{}) {
			res["signature"] = flight.Signature.String()
		}
		if flight.Reason != "" {
			res["reason"] = flight.Reason
		}
		printRespJSON(res)
	}
	return err
}

var (
	lamportsPerSOL = decimal.NewFromInt(int64(sol.LAMPORTS_PER_SOL))
	maxLamports    = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

func solToLamports(text string) (uint64, error) {
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	if !amount.IsPositive() {
		return 0, errors.New("amount must be positive")
	}
	lamports := amount.Mul(lamportsPerSOL)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than 9 decimal places", text)
	}
	if lamports.GreaterThan(maxLamports) {
		return 0, fmt.Errorf("amount %s exceeds %s SOL", text, lamportsToSOL(math.MaxUint64))
	}
	return lamports.BigInt().Uint64(), nil
}

func lamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
}
