package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(st *rootState) *cobra.Command {
	var (
		limit  int
		latest string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent action runs, or a user's latest fetched post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if latest != "" {
				post, err := a.LatestPost(cmd.Context(), latest)
				if err != nil {
					return err
				}
				if post == nil {
					return fmt.Errorf("no fetched posts for %s", latest)
				}
				return printJSON(cmd.OutOrStdout(), post)
			}
			runs, err := a.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to print")
	cmd.Flags().StringVar(&latest, "latest", "", "print the latest fetched post for this username")
	return cmd
}
