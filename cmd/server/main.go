package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashish9731/email-responder/internal/app"
	"github.com/ashish9731/email-responder/internal/config"
	"github.com/ashish9731/email-responder/internal/logger"
	"github.com/ashish9731/email-responder/internal/types"
	"github.com/ashish9731/email-responder/internal/validation"
)

const shutdownTimeout = 30 * time.Second

var (
	cfgFile    string
	logLevel   string
	logFormat  string
	serverPort int
	log        *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "email-responder",
	Short: "Keyword-triggered email auto-responder",
	Long: `A service that watches a mailbox for messages mentioning configured keywords,
opens a case for each one, replies with an inspection checklist and follows up
two hours later.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API and the email monitor",
	RunE:  runServe,
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one poll cycle and exit",
	RunE:  runPoll,
}

func init() {
	// Setup default logger until we load config
	log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)

	// Command line flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging format (text, json, dev)")
	rootCmd.PersistentFlags().IntVar(&serverPort, "port", 0, "override server port")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(CreateKeywordsCommand())
	rootCmd.AddCommand(CreateConfigCommand())
	rootCmd.AddCommand(CreateOAuth2Command())
}

// loadConfig reads the configuration, applies command line overrides and
// installs the configured logger as the default
func loadConfig() (*types.Config, string, error) {
	cfg, used, err := config.Load(cfgFile, log)
	if err != nil {
		return nil, "", err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	log = logger.Setup(cfg)
	slog.SetDefault(log)
	return cfg, used, nil
}

// loadValidConfig is loadConfig followed by validation
func loadValidConfig() (*types.Config, string, error) {
	cfg, used, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	if err := validation.ValidateConfig(cfg); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, used, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, used, err := loadValidConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create and start application
	a, err := app.New(ctx, cfg, used, log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	startErr := a.Start(ctx)
	if startErr == nil {
		// Wait for shutdown signal
		<-ctx.Done()
		log.Info("shutting down application")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		log.Error("failed to stop cleanly", "error", err)
	}

	if startErr != nil {
		return fmt.Errorf("failed to start application: %w", startErr)
	}
	return nil
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadValidConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, "", log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	cycleErr := a.RunOnce(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		log.Error("failed to stop cleanly", "error", err)
	}

	if cycleErr != nil {
		return fmt.Errorf("poll cycle failed: %w", cycleErr)
	}
	fmt.Println("Poll cycle completed")
	return nil
}
