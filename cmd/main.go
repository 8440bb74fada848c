package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"redis2redis/internal/app"
	"redis2redis/internal/config"
	"redis2redis/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "redis2redis",
	Short: "Migrate a full keyspace from one Redis instance to another",
	Long: `A batch migration tool that copies every key from a source Redis to a target
Redis, preserving value bytes, type, and expiration. Keys above a size limit
are not transferred; they are listed in a manifest file for manual handling.`,
	RunE:          runMigration,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")

	// Source flags
	rootCmd.Flags().String("src-host", "", "source Redis host")
	rootCmd.Flags().Int("src-port", 6379, "source Redis port")
	rootCmd.Flags().String("src-password", "", "source Redis password")
	rootCmd.Flags().Int("src-db", 0, "source Redis database index")

	// Target flags
	rootCmd.Flags().String("dst-host", "", "target Redis host")
	rootCmd.Flags().Int("dst-port", 6379, "target Redis port")
	rootCmd.Flags().String("dst-password", "", "target Redis password")
	rootCmd.Flags().Int("dst-db", 0, "target Redis database index")

	// Migration flags
	rootCmd.Flags().Int64("batch-size", 1000, "number of keys per SCAN batch")
	rootCmd.Flags().Int64("size-limit", 10*1024*1024, "keys above this many bytes go to the manifest instead of the target")
	rootCmd.Flags().String("manifest", "large_keys.txt", "manifest file for deferred keys")
	rootCmd.Flags().String("journal", "./migration.db", "run journal database file (empty to disable)")
	rootCmd.Flags().Int("timeout", 60, "per-connection operation timeout in seconds")
	rootCmd.Flags().String("metrics-addr", "", "address for the Prometheus /metrics listener (empty to disable)")
	rootCmd.Flags().String("log-level", "info", "log level (debug/info/warn/error)")
	rootCmd.Flags().Bool("show-progress", true, "show progress display")
}

func runMigration(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	// Create application
	migrator, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received shutdown signal, stopping after the current batch...")
		cancel()
	}()

	// Run migration
	outcome, err := migrator.Run(ctx)

	// Close migrator resources after migration completes or is cancelled
	if closeErr := migrator.Close(); closeErr != nil {
		log.Error("Error closing migrator", zap.Error(closeErr))
	}

	printSummary(outcome)
	return err
}

func printSummary(outcome *app.Outcome) {
	if outcome == nil {
		return
	}

	fmt.Printf("\nMigration %s\n", outcome.State)
	fmt.Printf("  scanned:     %d\n", outcome.Scanned)
	fmt.Printf("  transferred: %d\n", outcome.Transferred)
	fmt.Printf("  deferred:    %d\n", outcome.Deferred)
	fmt.Printf("  failed:      %d\n", outcome.Failed)
	if outcome.SizeQueryMisses > 0 {
		fmt.Printf("  size queries missed: %d\n", outcome.SizeQueryMisses)
	}
	if outcome.DeferredErrors > 0 {
		fmt.Printf("  manifest lines omitted: %d\n", outcome.DeferredErrors)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
