package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zapdesk/internal/archive"
	"zapdesk/internal/config"
	"zapdesk/internal/domain"
	"zapdesk/internal/history"
	"zapdesk/internal/process"
	"zapdesk/internal/server"
	"zapdesk/internal/store"
	"zapdesk/internal/whatsapp"

	"github.com/spf13/cobra"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "zapdesk",
		Short: "zapdesk: WhatsApp customer-service relay",
		Long:  "zapdesk ingests WhatsApp Business webhook events, notifies staff of client messages, and answers staff with conversation history.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.zapdesk/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE:  runServe,
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// stores bundles the persistence interfaces a run needs; both the SQLite
// store and the in-memory registry satisfy it.
type stores interface {
	domain.ClientStore
	domain.MessageStore
	domain.ManagerStore
}

func openStores(cfg *config.Config) (stores, func() error, error) {
	if cfg.Storage.InMemory {
		logger.Warn("using in-memory history, messages are lost on restart")
		return history.NewRegistry(), func() error { return nil }, nil
	}
	db, err := store.NewSQLiteStore(cfg.Storage.DBPath, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}

	setLogLevel(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	sender := whatsapp.NewSender(whatsapp.SenderConfig{
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		APIBase:       cfg.WhatsApp.APIBase,
		SendDelay:     time.Duration(cfg.WhatsApp.SendDelayMs) * time.Millisecond,
		Logger:        logger,
	})

	processor := process.New(process.Config{
		Messenger: sender,
		Clients:   db,
		Messages:  db,
		Managers:  db,
		Logger:    logger,
	})

	srv := server.New(server.Config{
		Port:        cfg.Server.Port,
		WebhookPath: cfg.Server.WebhookPath,
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
		Messenger:   sender,
		Processor:   processor,
		Archiver:    archive.New(cfg.Archive.Dir, logger),
		Logger:      logger,
	})

	return srv.Run(ctx)
}

func setLogLevel(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
