package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newScheduleCmd(st *rootState) *cobra.Command {
	var (
		now  bool
		list bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the story warm-up schedule without the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(st.cfg.Schedule.Usernames) == 0 {
				return errors.New("schedule.usernames is empty")
			}
			a, err := st.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := newWarmUpScheduler(st.cfg, a, st.logger())
			if err != nil {
				return err
			}

			if now {
				return sched.RunNow(cmd.Context(), "warmup", a.WarmUp().Job())
			}
			if list {
				sched.Start()
				defer sched.Stop()
				for _, job := range sched.ListJobs() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tnext %s\n", job.Name, st.cfg.Schedule.Spec, job.NextRun.Format(time.RFC3339))
				}
				return nil
			}
			return sched.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "run one round immediately and exit")
	cmd.Flags().BoolVar(&list, "list", false, "print the next run and exit")
	return cmd
}
