package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dashfin/internal/config"
	"dashfin/internal/logger"
)

var (
	cfgFile string
	cfg     config.Config

	rootCmd = &cobra.Command{
		Use:   "dashfin",
		Short: "Personal finance dashboard backend",
		Long: `dashfin serves the personal finance dashboard API: transactions,
users, cards and accounts, plus the webhook that turns chat messages
into expenses and income.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./dashfin.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (json, console)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	loaded, err := config.Load(cfgFile, map[string]any{
		"log.level":  level,
		"log.format": format,
	})
	if err != nil {
		return err
	}
	cfg = loaded

	logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return nil
}
