package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/gopherthread/internal/state"
	"github.com/user/gopherthread/internal/types"
)

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadListCmd, threadForgetCmd)
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage remembered threads",
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewThreadStore(cfg.DataDir)

		records, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No threads remembered.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tTHREAD\tASSISTANT\tLAST USED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.SessionKey,
				r.ThreadID,
				r.AssistantID,
				r.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var threadForgetCmd = &cobra.Command{
	Use:   "forget <session|all>",
	Short: "Forget the thread remembered for a session, or all of them",
	Long:  "Forget only removes the local record; the remote thread is left untouched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewThreadStore(cfg.DataDir)
		out := cmd.OutOrStdout()

		if args[0] == "all" {
			if err := store.ForgetAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, "All threads forgotten.")
			return nil
		}

		if err := store.Forget(cmd.Context(), types.SessionKey(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(out, "Forgot thread for session %s.\n", args[0])
		return nil
	},
}
