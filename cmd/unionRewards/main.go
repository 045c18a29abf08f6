package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Layr-Labs/union-rewards-go/pkg/config"
	"github.com/Layr-Labs/union-rewards-go/pkg/distributor"
	"github.com/Layr-Labs/union-rewards-go/pkg/logger"
	"github.com/Layr-Labs/union-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/union-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/union-rewards-go/pkg/proofs"
	"github.com/Layr-Labs/union-rewards-go/pkg/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "union-rewards",
		Usage: "Union rewards merkle distribution and vault accounting tool",
		Description: `Builds and serves merkle distributions of reward claims.

This tool can:
- Build an ordered merkle tree from a claims file and write proofs.json
- Verify published proofs against their merkle root
- Publish a distribution root to a distributor and serve claims over HTTP
- Replay vault deposits, withdrawals and harvests against the fee policy`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Build a distribution from a claims file and write proofs.json",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "claims",
						Usage:    "Claims file: {\"0xaddr\": amount} or [{\"user\": \"0xaddr\", \"amount\": amount}]",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Where to write proofs.json",
						Value: "proofs.json",
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Distribution ID (random when empty)",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Also store the distribution in the configured persistence",
					},
				}, persistenceFlags...),
				Action: buildCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify proofs in a proofs.json against its merkle root",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "proofs",
						Usage:    "Path to proofs.json",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "account",
						Usage: "Only verify this account",
					},
				},
				Action: verifyCommand,
			},
			{
				Name:  "root",
				Usage: "Print the merkle root of a claims file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "claims",
						Usage:    "Claims file",
						Required: true,
					},
				},
				Action: rootCommand,
			},
			{
				Name:  "publish",
				Usage: "Freeze a distributor, set a stored distribution's root and start a new week",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "distribution",
						Usage:    "Stored distribution ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "distributor",
						Usage:    "Distributor ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "unfreeze",
						Usage: "Unfreeze claims once the root is set",
						Value: true,
					},
					&cli.DurationFlag{
						Name:  "claim-window",
						Usage: "Close claims this long after publishing (0 keeps the current deadline)",
					},
				}, persistenceFlags...),
				Action: publishCommand,
			},
			{
				Name:  "serve",
				Usage: "Serve stored distributions and proofs over HTTP",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "HTTP server port",
						Value:   config.DefaultPort,
						EnvVars: []string{config.EnvPort},
					},
					&cli.IntFlag{
						Name:    "cache-size",
						Usage:   "Number of distributions kept in memory",
						Value:   config.DefaultCacheSize,
						EnvVars: []string{config.EnvCacheSize},
					},
					&cli.StringFlag{
						Name:  "distributor",
						Usage: "Distributor ID to accept claims for (claims disabled when empty)",
					},
				}, persistenceFlags...),
				Action: serveCommand,
			},
			{
				Name:  "vault-replay",
				Usage: "Replay a JSON list of vault operations and print the results",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "script",
						Usage:    "Vault script file",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "stop-on-error",
						Usage: "Stop at the first failed operation",
					},
				}, persistenceFlags...),
				Action: vaultReplayCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

func buildCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	claims, err := proofs.ReadClaims(c.String("claims"))
	if err != nil {
		return err
	}

	tree, err := merkle.NewOrderedMerkleTree(claims)
	if err != nil {
		return fmt.Errorf("failed to build merkle tree: %w", err)
	}

	dist, err := tree.Distribution(c.Context, c.String("id"))
	if err != nil {
		return fmt.Errorf("failed to generate proofs: %w", err)
	}

	pf, err := proofs.FromDistribution(dist)
	if err != nil {
		return err
	}
	dist.ID = pf.ID

	if err := pf.VerifyAll(); err != nil {
		return fmt.Errorf("generated proofs do not verify: %w", err)
	}
	if err := proofs.WriteProofsFile(c.String("output"), pf); err != nil {
		return err
	}

	if c.Bool("save") {
		store, err := openDurableStore(c, l)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.SaveDistribution(dist); err != nil {
			return errors.Wrapf(err, "failed to save distribution %s", dist.ID)
		}
	}

	l.Sugar().Infow("Distribution built",
		"id", pf.ID,
		"merkle_root", pf.MerkleRoot.Hex(),
		"claims", len(dist.Proofs),
		"depth", tree.Tree().Depth(),
		"output", c.String("output"),
	)
	fmt.Println(pf.MerkleRoot.Hex())
	return nil
}

func verifyCommand(c *cli.Context) error {
	pf, err := proofs.ReadProofsFile(c.String("proofs"))
	if err != nil {
		return err
	}

	if account := c.String("account"); account != "" {
		if !common.IsHexAddress(account) {
			return fmt.Errorf("invalid account address %q", account)
		}
		if err := pf.Verify(common.HexToAddress(account)); err != nil {
			return err
		}
		fmt.Printf("proof for %s is valid\n", common.HexToAddress(account).Hex())
		return nil
	}

	if err := pf.VerifyAll(); err != nil {
		return err
	}
	fmt.Printf("all %d proofs are valid against %s\n", len(pf.Proofs), pf.MerkleRoot.Hex())
	return nil
}

func rootCommand(c *cli.Context) error {
	claims, err := proofs.ReadClaims(c.String("claims"))
	if err != nil {
		return err
	}
	tree, err := merkle.NewOrderedMerkleTree(claims)
	if err != nil {
		return fmt.Errorf("failed to build merkle tree: %w", err)
	}
	fmt.Println(tree.Root().Hex())
	return nil
}

// loadDistributor restores a distributor from store, creating it when absent
func loadDistributor(id string, store persistence.IRewardsPersistence, l *zap.Logger) (*distributor.Distributor, error) {
	ds, err := store.LoadDistributorState(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load distributor %s", id)
	}
	if ds == nil {
		return distributor.NewDistributor(id, store, l)
	}
	return distributor.Restore(ds, store, l)
}

func publishCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	store, err := openDurableStore(c, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	dist, err := store.LoadDistribution(c.String("distribution"))
	if err != nil {
		return errors.Wrapf(err, "failed to load distribution %s", c.String("distribution"))
	}
	if dist == nil {
		return fmt.Errorf("distribution %s not found", c.String("distribution"))
	}

	d, err := loadDistributor(c.String("distributor"), store, l)
	if err != nil {
		return err
	}

	if !d.Frozen() {
		if err := d.Freeze(); err != nil {
			return err
		}
	}
	if window := c.Duration("claim-window"); window > 0 {
		if err := d.SetDeadline(time.Now().Add(window)); err != nil {
			return err
		}
	}
	if err := d.UpdateMerkleRoot(dist.MerkleRoot, c.Bool("unfreeze")); err != nil {
		return err
	}

	l.Sugar().Infow("Distribution published",
		"distributor", d.ID(),
		"distribution", dist.ID,
		"merkle_root", dist.MerkleRoot.Hex(),
		"week", d.Week(),
		"frozen", d.Frozen(),
	)
	return nil
}

func serveCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg, err := parseToolConfig(c)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := newPersistence(&cfg.Persistence, l)
	if err != nil {
		return fmt.Errorf("failed to open %s persistence: %w", cfg.Persistence.Type, err)
	}
	defer func() { _ = store.Close() }()

	var d *distributor.Distributor
	if id := c.String("distributor"); id != "" {
		if d, err = loadDistributor(id, store, l); err != nil {
			return err
		}
	}

	srv, err := server.NewServer(server.Config{Port: cfg.Server.Port, CacheSize: cfg.Server.CacheSize}, store, d, l)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		l.Sugar().Infow("Server configuration",
			"port", cfg.Server.Port,
			"cache_size", cfg.Server.CacheSize,
			"persistence", cfg.Persistence.Type,
			"distributor", c.String("distributor"),
		)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	l.Sugar().Infow("Available endpoints",
		"health", "GET /healthz",
		"distributions", "GET /distributions",
		"proofs", "GET /distributions/:id/proofs/:account",
		"verify", "POST /distributions/:id/verify",
		"claim", "POST /distributions/:id/claim")
	l.Sugar().Info("Press Ctrl+C to stop")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func vaultReplayCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	script, err := readVaultScript(c.String("script"))
	if err != nil {
		return err
	}

	store, err := openStore(c, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	v, err := openVault(script, store, l)
	if err != nil {
		return err
	}

	report := replayVault(v, script.Operations, c.Bool("stop-on-error"))

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal replay report")
	}
	fmt.Println(string(out))
	return nil
}
