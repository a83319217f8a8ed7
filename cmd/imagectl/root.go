package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "imagectl",
		Short:         "Operate the story image pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	out := func(cmd *cobra.Command) printer {
		return printer{cmd: cmd, json: jsonOutput}
	}

	rootCmd.AddCommand(newMigrateCommand(ctx, out))
	rootCmd.AddCommand(newMigrateRecordCommand(ctx, out))
	rootCmd.AddCommand(newCompressLocalCommand(ctx, out))
	rootCmd.AddCommand(newOptimizeCommand(ctx, out))
	rootCmd.AddCommand(newStatusCommand(ctx, out))
	rootCmd.AddCommand(newURLsCommand(ctx, out))
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}
