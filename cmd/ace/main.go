package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ace",
	Short: "Dual-loop task runner that distills skill sessions into a playbook",
	Long: `ace runs tasks through an external reasoning engine while curating a
durable playbook of reusable knowledge.

A primary session works on the task; when the escalation policy fires,
a nested skill session distills what was learned into deltas that are
validated and merged into the versioned playbook before the primary
session resumes.`,
	Version: "0.1.0",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
