package main

import (
	"fmt"

	"vsnplyr/internal/client"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch PLAYLIST",
		Short: "Print a playlist every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withSession(ctx, func(s *client.Session) error {
				updates, stop, err := s.VisibleSequence(ctx, args[0])
				if err != nil {
					return err
				}
				defer stop()

				out := cmd.OutOrStdout()
				for {
					select {
					case <-ctx.Done():
						return nil
					case err := <-s.Errors():
						fmt.Fprintf(cmd.ErrOrStderr(), "rolled back: %v\n", err)
					case songs, ok := <-updates:
						if !ok {
							return client.ErrSubscriptionClosed
						}
						fmt.Fprintln(out)
						if err := printSequence(out, songs); err != nil {
							return err
						}
					}
				}
			})
		},
	}
}
