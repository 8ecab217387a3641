package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hoppsim/hybrid/app"
	"github.com/hoppsim/hybrid/config"
	"github.com/hoppsim/hybrid/infra/logger"
	"github.com/hoppsim/hybrid/pkg/export"
)

var (
	cfgPath string
	outPath string
)

var rootCmd = &cobra.Command{
	Use:   "hybridsim",
	Short: "Hybrid plant battery dispatch simulator",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the committed ledger to this CSV file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		if err := export.WriteCSV(f, res.Records); err != nil {
			return fmt.Errorf("write ledger: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d periods committed, objective %.2f USD, final SoC %.3f\n",
		res.RunID, len(res.Records), res.Objective, res.FinalSoC)
	return nil
}
