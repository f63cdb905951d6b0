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
	functionalTest         string
	analysisFile           string
	counterexampleFile     string
	onlyInitialExecution   bool
	disableDynamicReduction bool
	forcedFailureIteration string
	suppressCombinations   bool
	setupScript            string
	teardownScript         string
	testListen             string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run a fault-injection test suite against a functional test command",
	Long: `Run the initial fault-free execution, then drain the derived schedule of
faulty executions, running --functional-test once per execution. The first
failing execution is written to --counterexample-file, if given.`,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVar(&functionalTest, "functional-test", "", "command to run for each test execution (required)")
	testCmd.Flags().StringVar(&analysisFile, "analysis-file", "", "path to the fault catalog document (required)")
	testCmd.Flags().StringVar(&counterexampleFile, "counterexample-file", "", "path to write the first failing execution to")
	testCmd.Flags().BoolVar(&onlyInitialExecution, "only-initial-execution", false, "run only the fault-free execution, skip the schedule")
	testCmd.Flags().BoolVar(&disableDynamicReduction, "disable-dynamic-reduction", false, "run every scheduled execution, even ones dynamic reduction would prune")
	testCmd.Flags().StringVar(&forcedFailureIteration, "forced-failure", "", "treat this iteration number as failed, as if the functional test had failed")
	testCmd.Flags().BoolVar(&suppressCombinations, "suppress-combinations", false, "generate only single-fault executions, skip combinations")
	testCmd.Flags().StringVar(&setupScript, "setup-script", "", "command to run before each iteration")
	testCmd.Flags().StringVar(&teardownScript, "teardown-script", "", "command to run after each iteration")
	testCmd.Flags().StringVar(&testListen, "listen", "", "control plane listen address - overrides config")

	_ = testCmd.MarkFlagRequired("functional-test")
	_ = testCmd.MarkFlagRequired("analysis-file")
}

func runTest(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to initialize services")
		return err
	}

	cfgSvc := di.MustInvoke[*di.ConfigService](container)
	cfg := cfgSvc.Config
	cfg.Catalog.Path = analysisFile
	cfg.Orchestrator.OnlyInitialExecution = onlyInitialExecution
	cfg.Orchestrator.DynamicReduction = !disableDynamicReduction
	cfg.Orchestrator.SuppressCombinations = suppressCombinations
	cfg.Orchestrator.ForcedFailureIteration = forcedFailureIteration
	if counterexampleFile != "" {
		cfg.Orchestrator.CounterexamplePath = counterexampleFile
	}
	if testListen != "" {
		cfg.Server.Listen = testListen
	}

	loggerSvc := di.MustInvoke[*di.LoggerService](container)
	log.Logger = *loggerSvc.Logger
	zerolog.DefaultContextLogger = loggerSvc.Logger

	orchSvc := di.MustInvoke[*di.OrchestratorService](container)
	runner := &orchestrator.CommandRunner{
		FunctionalTest: functionalTest,
		Setup:          setupScript,
		Teardown:       teardownScript,
		Logger:         *loggerSvc.Logger,
	}
	orchSvc.Orchestrator.SetRunner(runner)

	summary, err := orchSvc.Orchestrator.Run(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("orchestration run failed")
		return err
	}

	if err := container.Shutdown(); err != nil {
		log.Error().Err(err).Msg("service shutdown error")
	}

	return reportSummary(summary)
}

func reportSummary(summary *orchestrator.Summary) error {
	if summary.FailingExecution == nil {
		fmt.Printf("✓ %d executions ran (%d pruned), all passed\n", summary.Ran, summary.Pruned)
		return nil
	}

	fmt.Printf("✗ execution failed after %d run (%d pruned)\n", summary.Ran, summary.Pruned)
	if summary.CounterexampleFile != "" {
		fmt.Printf("counterexample written to %s\n", summary.CounterexampleFile)
	}
	os.Exit(1)
	return nil
}
