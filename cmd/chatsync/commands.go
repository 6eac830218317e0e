package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Reconcile remote and cached history and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := a.engine()
			defer eng.Close()

			if err := eng.Load(cmd.Context()); err != nil {
				return err
			}
			printMessages(cmd.OutOrStdout(), eng.Messages())
			if msg := eng.Error(); msg != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "! %s\n", msg)
			}
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the cached transcript of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.store.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "local history cleared")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the user id of this profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.store.UserID())
			return nil
		},
	}
}
