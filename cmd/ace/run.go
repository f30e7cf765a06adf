package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/XiaoConstantine/ace-go/pkg/config"
	"github.com/XiaoConstantine/ace-go/pkg/core"
	"github.com/XiaoConstantine/ace-go/pkg/curator"
	"github.com/XiaoConstantine/ace-go/pkg/llms"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
)

var (
	runConfigPath     string
	runPlaybookPath   string
	runTrajectoryPath string
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Execute a task through the dual-loop engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(runConfigPath)
		if err != nil {
			return err
		}
		if runPlaybookPath != "" {
			cfg.Playbook.Path = runPlaybookPath
		}

		setupLogging(cfg)

		store, err := cfg.Store()
		if err != nil {
			return err
		}

		factory, err := buildFactory(cfg)
		if err != nil {
			return err
		}

		sink := curator.NewProgressSink(func(line string) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		})
		defer sink.Close()

		c, err := curator.NewCurator(factory, store, curator.WithProgress(sink))
		if err != nil {
			return err
		}

		sc, err := core.ResolveSessionContext(cfg.Session.Root, c.Playbook().ToContext())
		if err != nil {
			return err
		}

		result, runErr := c.RunTask(cmd.Context(), sc, args[0])

		if runTrajectoryPath != "" && result != nil {
			if err := exportTrajectory(result.Trajectory, runTrajectoryPath); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trajectory export failed: %v\n", err)
			}
		}

		if runErr != nil {
			return runErr
		}

		fmt.Fprintf(cmd.OutOrStdout(), "success=%t playbook_version=%d deltas=%d events=%d\n",
			result.Success, result.PlaybookVersion, result.DeltaCount, result.Trajectory.Len())
		return nil
	},
}

func buildFactory(cfg *config.Config) (core.DriverFactory, error) {
	switch cfg.Engine.Provider {
	case "scripted":
		// A replay engine with an empty script; useful for exercising
		// the wiring without credentials.
		return func(sc *core.SessionContext, loop core.LoopType) (core.SessionDriver, error) {
			return llms.NewScriptedDriver(loop, core.SessionEndPayload{Success: true}), nil
		}, nil
	default:
		return llms.AnthropicFactory(cfg.APIKey(), cfg.Engine.Model), nil
	}
}

func setupLogging(cfg *config.Config) {
	outputs := []logging.Output{logging.NewConsoleOutput(true)}
	if cfg.Logging.File != "" {
		if fileOut, err := logging.NewFileOutput(cfg.Logging.File); err == nil {
			outputs = append(outputs, fileOut)
		}
	}
	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: cfg.Severity(),
		Outputs:  outputs,
	}))
}

func exportTrajectory(trajectory *core.Trajectory, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return trajectory.ExportJSONL(f)
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to the YAML config file")
	runCmd.Flags().StringVar(&runPlaybookPath, "playbook", "", "override the playbook path")
	runCmd.Flags().StringVar(&runTrajectoryPath, "export-trajectory", "", "write the trajectory as JSONL to this path")
	rootCmd.AddCommand(runCmd)
}
