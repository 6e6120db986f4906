// Command kamui-oracle fulfills randomness requests on a kamui-server.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bren2010/kamui/client"
	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/devnet"
	"github.com/Bren2010/kamui/logging"
	"github.com/Bren2010/kamui/oracle"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	server       string
	signingKey   string
	vrfKey       string
	pollInterval time.Duration
	startLog     uint64
	logLevel     string
	jsonLogs     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "kamui-oracle",
		Short:         "Fulfill randomness requests made to the VRF coordinator",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "http://localhost:8080", "URL of the kamui-server.")
	flags.StringVar(&opts.signingKey, "signing-key", os.Getenv("KAMUI_ORACLE_KEY"), "Hex encoded 32 byte seed of the oracle's keypair. Defaults to $KAMUI_ORACLE_KEY.")
	flags.StringVar(&opts.vrfKey, "vrf-key", os.Getenv("KAMUI_VRF_KEY"), "Hex encoded VRF private key. Defaults to $KAMUI_VRF_KEY.")
	flags.DurationVar(&opts.pollInterval, "poll-interval", 500*time.Millisecond, "How often to check for new requests.")
	flags.Uint64Var(&opts.startLog, "start-log", 0, "Log sequence number to start reading events from.")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level. Defaults to $"+logging.EnvVar+", then info.")
	flags.BoolVar(&opts.jsonLogs, "json", false, "Write logs as JSON.")
	return cmd
}

type keys struct {
	oracle *pubkey.Keypair
	vrf    *ristretto255.PrivateKey
}

func parseKeys(signingKey, vrfKey string) (*keys, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("no signing key provided")
	} else if vrfKey == "" {
		return nil, fmt.Errorf("no vrf key provided")
	}
	seed, err := hex.DecodeString(signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %v", err)
	}
	kp, err := pubkey.KeypairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(vrfKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vrf key: %v", err)
	}
	vrf, err := ristretto255.NewPrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return &keys{oracle: kp, vrf: vrf}, nil
}

func run(ctx context.Context, opts *options) error {
	k, err := parseKeys(opts.signingKey, opts.vrfKey)
	if err != nil {
		return err
	}
	level, err := logging.Level(opts.logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(level, opts.jsonLogs)
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := client.New(opts.server, nil)
	if err != nil {
		return err
	}
	meta, err := c.Meta(ctx)
	if err != nil {
		return err
	}
	logger.Info("Connected to server",
		zap.String("server", opts.server),
		zap.Stringer("coordinator", meta.Programs.Coordinator),
		zap.Stringer("oracle", k.oracle.Pubkey()),
		zap.String("vrf_key", hex.EncodeToString(k.vrf.PublicKey().Bytes())),
	)

	prover, err := oracle.New(oracle.Config{
		Chain:         c,
		CoordinatorID: meta.Programs.Coordinator,
		Keypair:       k.oracle,
		VrfKey:        k.vrf,
		Resolvers:     devnet.Resolvers(meta.Programs),
		PollInterval:  opts.pollInterval,
		StartLog:      opts.startLog,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	return prover.Run(ctx)
}
