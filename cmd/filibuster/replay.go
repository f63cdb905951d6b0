package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/filibuster-io/filibuster-go/cmd/filibuster/di"
	"github.com/filibuster-io/filibuster-go/internal/orchestrator"
)

var (
	replayCounterexampleFile string
	replayFunctionalTest     string
	replaySetupScript        string
	replayTeardownScript     string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a previously recorded counterexample",
	Long: `Re-run the exact schedule recorded in --counterexample-file and report
whether the failure reproduces.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVar(&replayCounterexampleFile, "counterexample-file", "", "path to the counterexample to replay (required)")
	replayCmd.Flags().StringVar(&replayFunctionalTest, "functional-test", "", "command to run for the replayed execution (required)")
	replayCmd.Flags().StringVar(&replaySetupScript, "setup-script", "", "command to run before the replayed execution")
	replayCmd.Flags().StringVar(&replayTeardownScript, "teardown-script", "", "command to run after the replayed execution")

	_ = replayCmd.MarkFlagRequired("counterexample-file")
	_ = replayCmd.MarkFlagRequired("functional-test")
}

func runReplay(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	counterexample, err := orchestrator.LoadCounterexample(replayCounterexampleFile)
	if err != nil {
		log.Error().Err(err).Str("path", replayCounterexampleFile).Msg("failed to load counterexample")
		return err
	}

	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to initialize services")
		return err
	}

	loggerSvc := di.MustInvoke[*di.LoggerService](container)
	log.Logger = *loggerSvc.Logger
	zerolog.DefaultContextLogger = loggerSvc.Logger

	cfgSvc := di.MustInvoke[*di.ConfigService](container)
	catalogSvc := di.MustInvoke[*di.CatalogService](container)
	metricsSvc := di.MustInvoke[*di.MetricsService](container)
	memoSvc := di.MustInvoke[*di.FaultMemoService](container)

	runner := &orchestrator.CommandRunner{
		FunctionalTest: replayFunctionalTest,
		Setup:          replaySetupScript,
		Teardown:       replayTeardownScript,
		Logger:         *loggerSvc.Logger,
	}

	opts := orchestrator.Options{
		CounterexamplePath: cfgSvc.Config.Orchestrator.CounterexamplePath,
	}
	o := orchestrator.New(opts, catalogSvc.Get(), runner, *loggerSvc.Logger, counterexample)
	o.SetMetrics(metricsSvc.Metrics)
	o.SetCache(memoSvc.Memo)

	summary, err := o.Run(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("replay failed")
		return err
	}

	if err := container.Shutdown(); err != nil {
		log.Error().Err(err).Msg("service shutdown error")
	}

	if summary.FailingExecution == nil {
		fmt.Println("✓ counterexample did not reproduce")
		return nil
	}

	fmt.Println("✗ counterexample reproduced")
	os.Exit(1)
	return nil
}
