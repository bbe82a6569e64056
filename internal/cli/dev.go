package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	browseropts "github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/observability"
)

const botTestURL = "https://bot.sannysoft.com"

func newLoginCmd(st *rootState) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in manually in a browser window and save the session cookies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if path, ok := a.HasSavedSession(); ok && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Session cookies already saved at %s (use --force to log in again)\n", path)
				return nil
			}

			path, err := a.Login(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cookies saved to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "log in even when a session is already saved")
	return cmd
}

// newBotTestCmd opens a fingerprint audit page with the same stealth
// options the actions use.
func newBotTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot-test",
		Short: "Open " + botTestURL + " to audit the browser fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			logger.Info("Opening fingerprint audit page with stealth browser options")

			allocCtx, cancel := chromedp.NewExecAllocator(cmd.Context(), browseropts.Options(false)...)
			defer cancel()
			ctx, cancel := chromedp.NewContext(allocCtx)
			defer cancel()

			if err := chromedp.Run(ctx, chromedp.Navigate(botTestURL)); err != nil {
				return fmt.Errorf("failed to navigate: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to close the browser...")
			waitForEnter(ctx, cmd)
			return nil
		},
	}
}

func waitForEnter(ctx context.Context, cmd *cobra.Command) {
	done := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func newOpenCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|logs>",
		Short:     "Open the config file or the log directory",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "logs"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := openTarget(args[0], st.configPath, st.cfg)
			if err != nil {
				return err
			}
			if err := browser.OpenFile(path); err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			return nil
		},
	}
}

// openTarget resolves what "open" shows. The config file is created with
// defaults when it does not exist yet.
func openTarget(target, configPath string, cfg *config.Config) (string, error) {
	switch target {
	case "config":
		if err := ensureConfig(configPath, cfg); err != nil {
			return "", err
		}
		return configPath, nil
	case "logs":
		return filepath.Abs(filepath.Dir(cfg.Storage.ActivityLog))
	default:
		return "", fmt.Errorf("unknown target: %s", target)
	}
}

func ensureConfig(path string, cfg *config.Config) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
