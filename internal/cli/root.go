// Package cli wires the igwarmup commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/app"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/observability"
)

// rootState is shared by every subcommand once PersistentPreRunE has run
type rootState struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() (*cobra.Command, *rootState) {
	st := &rootState{}
	root := &cobra.Command{
		Use:           "igwarmup",
		Short:         "Browser automation for likes, comments and story reactions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if st.configPath == "" {
				p, err := config.ConfigPath()
				if err != nil {
					return err
				}
				st.configPath = p
			}
			cfg, err := config.Load(st.configPath)
			if err != nil {
				observability.InitializeLogger(config.Default().Logger)
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				observability.InitializeLogger(cfg.Logger)
				return fmt.Errorf("invalid config: %w", err)
			}
			observability.InitializeLogger(cfg.Logger)
			st.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&st.configPath, "config", "c", "", "config file (default is the user config dir)")

	root.AddCommand(
		newServeCmd(st),
		newLikePostCmd(st),
		newCommentCmd(st),
		newLikeStoryCmd(st),
		newNewestPostCmd(st),
		newScheduleCmd(st),
		newLoginCmd(st),
		newHistoryCmd(st),
		newBotTestCmd(),
		newOpenCmd(st),
	)
	return root, st
}

// Execute runs the root command with a signal-aware context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, _ := newRootCmd()
	err := root.ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openApp builds the application from the loaded config
func (st *rootState) openApp() (*app.App, error) {
	return app.New(st.cfg, app.Options{ConfigPath: st.configPath}, observability.GetLogger())
}

func (st *rootState) logger() *zap.Logger {
	return observability.GetLogger()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
