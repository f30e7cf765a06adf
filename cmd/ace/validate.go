package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/XiaoConstantine/ace-go/pkg/config"
	"github.com/XiaoConstantine/ace-go/pkg/core"
)

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config and session root without running a task",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(validateConfigPath)
		if err != nil {
			return err
		}

		sc, err := core.ResolveSessionContext(cfg.Session.Root, core.KnowledgeContext{})
		if err != nil {
			return err
		}

		writeContextSummary(cmd.OutOrStdout(), sc)
		return nil
	},
}

// writeContextSummary prints the resolved assets with agents in sorted
// order, so output is stable across runs.
func writeContextSummary(w io.Writer, sc *core.SessionContext) {
	fmt.Fprintf(w, "session root: %s\n", sc.Root)

	names := make([]string, 0, len(sc.Agents))
	for name := range sc.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "agents: %d\n", len(names))
	for _, name := range names {
		fmt.Fprintf(w, "  - %s\n", name)
	}
	fmt.Fprintf(w, "commands: %d\n", len(sc.Commands))
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "", "path to the YAML config file")
	rootCmd.AddCommand(validateCmd)
}
