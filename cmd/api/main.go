package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/api/routes"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/cerberus"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/config"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/database"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/logger"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/metrics"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/server"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/services"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/session"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/version"
)

var configFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Log().WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "portal",
		Short:         "SabPaisa developer portal server",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file (or PORTAL_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "reset-password <email> <new-password>",
			Short: "Set a new password for a portal user",
			Args:  cobra.ExactArgs(2),
			RunE:  runResetPassword,
		},
		&cobra.Command{
			Use:   "block-ip <ip|cidr> [reason]",
			Short: "Add an address or range to the persistent block list",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  runBlockIP,
		},
	)
	return root
}

// setup loads the configuration, points the logger at stdout and the rotated
// log file and opens the migrated database.
func setup() (config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logDir := cfg.LogDir
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		// Fallback to local directory if the configured one is not writable
		logDir = filepath.Join("data", "logs")
		_ = os.MkdirAll(logDir, 0o755)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "portal.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Debug, io.MultiWriter(os.Stdout, rotator))

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		return cfg, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return cfg, nil, err
	}
	return cfg, db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	log := logger.Log()
	log.Infof("starting %s %s", version.Name, version.Full())
	if cfg.Security.GeneratedSecret {
		log.Warn("security.session_secret is not set; using a random secret, sessions will not survive a restart")
	}

	// persistent rules are merged with the configured ones
	blocklist := services.NewBlocklistService(db)
	stored, err := blocklist.EnabledRules()
	if err != nil {
		return fmt.Errorf("load block list: %w", err)
	}
	opts := cfg.ToSecurityOptions()
	opts.BlockedIPs = append(append([]string{}, opts.BlockedIPs...), stored...)

	state, err := security.NewState(opts)
	if err != nil {
		return fmt.Errorf("build security state: %w", err)
	}
	state.Events.AddSink(metrics.EventSink{})

	alerts := services.NewAlertService(cfg.Security.AlertURLs, cfg.Security.AlertTypes, services.DefaultAlertCooldown)
	if alerts.Enabled() {
		state.Events.AddSink(alerts)
		defer alerts.Wait()
	}

	sessions, err := session.NewManager(cfg.Security.SessionSecret, cfg.Security.SessionTTL)
	if err != nil {
		return err
	}
	auth := services.NewAuthService(db, sessions)

	janitor, err := cerberus.NewJanitor(state, cfg.Security.SweepSchedule, cfg.Security.EventMaxAge)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	srv, err := server.New(routes.Deps{Config: cfg, State: state, Auth: auth, Registry: registry})
	if err != nil {
		return err
	}

	log.WithField("port", cfg.HTTPPort).
		WithField("blocked_rules", state.Blocklist.Len()).
		WithField("inspection_mode", state.InspectionMode).
		Infof("listening, trusted origins: %s", strings.Join(cfg.Security.TrustedOrigins, ", "))
	return srv.Run(cmd.Context())
}

func runResetPassword(_ *cobra.Command, args []string) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(cfg.Security.SessionSecret, cfg.Security.SessionTTL)
	if err != nil {
		return err
	}
	if err := services.NewAuthService(db, sessions).ResetPassword(args[0], args[1]); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	logger.Log().WithField("email", args[0]).Info("password updated")
	return nil
}

func runBlockIP(_ *cobra.Command, args []string) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	reason := ""
	if len(args) > 1 {
		reason = args[1]
	}
	rule, err := services.NewBlocklistService(db).Add(args[0], reason)
	if err != nil {
		return fmt.Errorf("block ip: %w", err)
	}
	logger.Log().WithField("rule", rule.CIDR).Info("block rule saved; restart the server to apply it")
	return nil
}
