package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"realestate-ingest/config"
	"realestate-ingest/storage"
	"realestate-ingest/utils"
)

// app carries what every command needs. cfg and logger are filled in before
// any command runs; openStore is replaceable in tests.
type app struct {
	cfgFile   string
	cfg       *config.Config
	logger    *utils.Logger
	out       io.Writer
	openStore func(ctx context.Context) (storage.Store, error)
}

func newApp() *app {
	a := &app{out: os.Stdout}
	a.openStore = a.connectStore
	return a
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "realestate-ingest",
		Short:         "Ingest imoveis-sc listings for saved searches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "optional YAML config file")
	root.SetOut(a.out)

	root.AddCommand(
		a.crawlCommand(),
		a.urlCommand(),
		a.migrateCommand(),
		a.enrichCommand(),
	)
	return root
}

func (a *app) init() error {
	if a.cfg == nil {
		cfg, err := config.Load(a.cfgFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.logger == nil {
		a.logger = utils.NewLoggerWithOptions(a.cfg.LogLevel, a.cfg.LogEncoding)
	}
	return nil
}

func (a *app) connectStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.StoreBackend {
	case "postgres", "":
		a.logger.Info("[main] Connecting to PostgreSQL at %s:%s", a.cfg.PostgresHost, a.cfg.PostgresPort)
		return storage.NewPostgresStore(ctx, a.cfg.DSN(), a.retryConfig())
	case "mongo":
		a.logger.Info("[main] Connecting to MongoDB database %s", a.cfg.MongoDatabase)
		return storage.NewMongoStore(ctx, a.cfg.MongoURI, a.cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want postgres or mongo)", a.cfg.StoreBackend)
	}
}

func (a *app) retryConfig() *utils.RetryConfig {
	return &utils.RetryConfig{MaxAttempts: a.cfg.MaxRetries, BaseDelay: time.Second, Logger: a.logger}
}

func main() {
	a := newApp()
	err := a.rootCommand().Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
