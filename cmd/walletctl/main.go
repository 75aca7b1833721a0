// Command walletctl runs wallet engine operations against a cluster from
// the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"solana-wallet-engine/internal/config"
	"solana-wallet-engine/internal/executor"
	"solana-wallet-engine/internal/keys"
	"solana-wallet-engine/internal/logger"
	"solana-wallet-engine/internal/solana"
	"solana-wallet-engine/internal/storage/memory"
	"solana-wallet-engine/internal/swap"
	"solana-wallet-engine/internal/wallet"
)

var defaultKeypairPath = filepath.Join(homeDir(), ".config", "solana", "id.json")

func main() {
	config.LoadEnvFile(".env")

	app := cli.NewApp()
	app.Name = "walletctl"
	app.Usage = "Command line interface for the Solana wallet engine"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "network",
			Usage:   "cluster name (devnet, testnet, mainnet-beta) or RPC URL",
			Value:   "devnet",
			EnvVars: []string{"WALLET_RPC_NETWORK"},
		},
		&cli.StringFlag{
			Name:    "keypair",
			Usage:   "path to the signer keypair file",
			Value:   defaultKeypairPath,
			EnvVars: []string{"WALLET_KEYPAIR"},
		},
		&cli.StringFlag{
			Name:  "commitment",
			Usage: "commitment level for reads and confirmation",
			Value: "confirmed",
		},
		&cli.DurationFlag{
			Name:  "budget",
			Usage: "how long to wait for confirmation",
			Value: wallet.DefaultConfirmBudget,
		},
		&cli.DurationFlag{
			Name:  "poll",
			Usage: "confirmation poll interval",
			Value: executor.DefaultPollInterval,
		},
		&cli.IntFlag{
			Name:  "rate_limit",
			Usage: "maximum RPC requests per second (0 disables)",
		},
		&cli.StringFlag{
			Name:  "log_level",
			Usage: "debug / info / warn / error",
			Value: "warn",
		},
	}
	app.Commands = append(
		app.Commands,
		&balance,
		&airdrop,
		&transfer,
		&swapCmd,
		&tps,
		&keygen,
		&cluster,
		&supply,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// newService wires a wallet service for one command invocation.
func newService(ctx *cli.Context, opts ...wallet.Option) (*wallet.Service, func(), error) {
	log, err := logger.New(config.LogConfig{Format: "console", Level: ctx.String("log_level")})
	if err != nil {
		return nil, nil, err
	}

	ledger := solana.NewHTTPClient(solana.EndpointFor(ctx.String("network")),
		solana.WithCommitment(ctx.String("commitment")),
		solana.WithRateLimit(ctx.Int("rate_limit")),
	)
	exec := executor.New(ledger,
		executor.WithLogger(log),
		executor.WithPollInterval(ctx.Duration("poll")),
	)

	base := []wallet.Option{
		wallet.WithLogger(log),
		wallet.WithExecutor(exec),
		wallet.WithConfirmBudget(ctx.Duration("budget")),
	}
	svc := wallet.NewService(ledger, memory.NewWalletStore(), append(base, opts...)...)
	return svc, func() { _ = log.Sync() }, nil
}

func newQuoteSource(endpoint string, timeout time.Duration) swap.QuoteSource {
	return swap.NewQuoteClient(endpoint, swap.DefaultBreakerConfig(), swap.WithQuoteTimeout(timeout), swap.WithQuoteLogger(zap.NewNop()))
}

func loadSigner(ctx *cli.Context) (keys.Keypair, error) {
	kp, err := keys.LoadKeypairFile(ctx.String("keypair"))
	if err != nil {
		return keys.Keypair{}, fmt.Errorf("load keypair: %w (try 'walletctl keygen')", err)
	}
	return kp, nil
}

func printRespJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[walletctl] %v\n", err)
	os.Exit(1)
}

func homeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
