package main

import (
	"github.com/spf13/cobra"

	"github.com/sawpanic/viralrisk/internal/config/risk"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage scoring configuration versions",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current configuration version",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) (interface{}, error) {
			return rt.engine.CurrentConfig(cmd.Context())
		}),
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List configuration version ids, oldest first",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) (interface{}, error) {
			return rt.engine.ConfigHistory(cmd.Context())
		}),
	}

	getCmd := &cobra.Command{
		Use:   "get <version-id>",
		Short: "Print one configuration version",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) (interface{}, error) {
			return rt.engine.GetVersion(cmd.Context(), args[0])
		}),
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Publish a new version from a partial configuration file",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) (interface{}, error) {
			flags := cmd.Flags()
			changes, err := risk.LoadPartialFile(stringFlag(flags, "file"))
			if err != nil {
				return nil, err
			}
			id, err := rt.engine.UpdateConfig(cmd.Context(), changes, stringFlag(flags, "description"), stringFlag(flags, "author"))
			if err != nil {
				return nil, err
			}
			return versionStatus{VersionID: id, Status: "published"}, nil
		}),
	}
	updateCmd.Flags().String("file", "", "YAML or JSON file with the fields to change (required)")
	updateCmd.Flags().String("description", "", "Description recorded with the version")
	updateCmd.Flags().String("author", "cli", "Author recorded with the version")
	_ = updateCmd.MarkFlagRequired("file")

	rollbackCmd := &cobra.Command{
		Use:   "rollback <version-id>",
		Short: "Make an earlier version current again",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) (interface{}, error) {
			if err := rt.engine.RollbackConfig(cmd.Context(), args[0], stringFlag(cmd.Flags(), "author")); err != nil {
				return nil, err
			}
			return versionStatus{VersionID: args[0], Status: "rolled_back"}, nil
		}),
	}
	rollbackCmd.Flags().String("author", "cli", "Author recorded with the rollback")

	cmd.AddCommand(showCmd, historyCmd, getCmd, updateCmd, rollbackCmd)
	return cmd
}

type versionStatus struct {
	VersionID string `json:"versionId"`
	Status    string `json:"status"`
}

// withRuntime wires the engine, runs fn under the command timeout and prints
// its result as JSON
func withRuntime(fn func(cmd *cobra.Command, rt *runtime, args []string) (interface{}, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		rt, err := buildRuntime(ctx, appConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		cmd.SetContext(ctx)
		out, err := fn(cmd, rt, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}
