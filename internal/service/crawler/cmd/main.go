package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"crawld/internal/pkg/database"
	"crawld/internal/pkg/logger"
	"crawld/internal/pkg/migration"
	"crawld/internal/service/crawler"
)

var (
	version = "1.0.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "crawld",
	Short: "Crawl batch dispatch service",
	Long:  `Dispatches rate-limited crawl batches with retries, recurring schedules and batch history.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the crawler service",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run batch history database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		runMigrations()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crawld %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServer() {
	app := fx.New(
		crawler.App,
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()

	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start crawler service: %v\n", err)
		os.Exit(1)
	}

	<-app.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stop crawler service: %v\n", err)
		os.Exit(1)
	}
}

func runMigrations() {
	var log *logger.Logger
	var db *database.Database

	app := fx.New(
		crawler.App,
		fx.NopLogger,
		fx.Invoke(func(logger *logger.Logger, database *database.Database) {
			log = logger
			db = database
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()

	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := db.SQLDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get database handle: %v\n", err)
		os.Exit(1)
	}

	if err := migration.RunMigrations(sqlDB, "migrations", log.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migrations completed successfully")

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stop: %v\n", err)
		os.Exit(1)
	}
}
