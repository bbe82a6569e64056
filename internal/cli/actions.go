package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/igwarmup/internal/actions"
	"github.com/ibeckermayer/igwarmup/internal/app"
	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// sessionFlags are the browser and cookie flags every action shares
type sessionFlags struct {
	cookies          string
	headless         bool
	remote           string
	browserlessToken string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cookies, "cookies", "", "path to the exported session cookies (JSON)")
	cmd.Flags().BoolVar(&f.headless, "headless", true, "run the browser without a window")
	cmd.Flags().StringVar(&f.remote, "remote", "", "remote browser websocket endpoint")
	cmd.Flags().StringVar(&f.browserlessToken, "browserless-token", "", "use the hosted browser service with this token")
}

// options merges the flags over the loaded config
func (f *sessionFlags) options(cmd *cobra.Command, st *rootState) actions.Options {
	opts := actions.Options{
		CookiesPath:    f.cookies,
		Headless:       st.cfg.Browser.Headless,
		RemoteEndpoint: st.cfg.Browser.RemoteEndpoint,
	}
	if cmd.Flags().Changed("headless") {
		opts.Headless = f.headless
	}
	switch {
	case f.browserlessToken != "":
		opts.RemoteEndpoint = browser.HostedURL(f.browserlessToken)
	case f.remote != "":
		opts.RemoteEndpoint = f.remote
	}
	return opts
}

type actionFunc func(a *app.App, ctx context.Context, opts actions.Options) types.Result

// runAction runs fn against a fresh app and prints the result. A failed
// result makes the command exit non-zero.
func runAction(cmd *cobra.Command, st *rootState, opts actions.Options, fn actionFunc) error {
	a, err := st.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res := fn(a, cmd.Context(), opts)
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	return nil
}

func newLikePostCmd(st *rootState) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "like-post <post-url>",
		Short: "Like a single post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd, st)
			opts.PostURL = args[0]
			return runAction(cmd, st, opts, (*app.App).LikePost)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCommentCmd(st *rootState) *cobra.Command {
	var (
		flags  sessionFlags
		postID string
	)
	cmd := &cobra.Command{
		Use:   "comment <post-url> <text>",
		Short: "Comment on a post once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd, st)
			opts.PostURL = args[0]
			opts.Comment = args[1]
			opts.DedupKey = postID
			return runAction(cmd, st, opts, (*app.App).PostComment)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&postID, "post-id", "", "deduplication key (defaults to the post code)")
	return cmd
}

func newLikeStoryCmd(st *rootState) *cobra.Command {
	var (
		flags  sessionFlags
		emojis []string
	)
	cmd := &cobra.Command{
		Use:   "like-story <username>",
		Short: "React to a user's story with an emoji",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd, st)
			opts.Username = args[0]
			opts.Emojis = emojis
			return runAction(cmd, st, opts, (*app.App).LikeStory)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&emojis, "emojis", nil, "reaction emojis to rotate through")
	return cmd
}

func newNewestPostCmd(st *rootState) *cobra.Command {
	var (
		flags   sessionFlags
		backend string
	)
	cmd := &cobra.Command{
		Use:   "newest-post <username>",
		Short: "Fetch a user's newest post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch backend {
			case actions.BackendBrowser, actions.BackendAPI, actions.BackendHelper:
			default:
				return errors.New(`--backend must be one of "browser", "api", "helper"`)
			}
			opts := flags.options(cmd, st)
			opts.Username = args[0]
			opts.Backend = backend
			return runAction(cmd, st, opts, (*app.App).FetchNewestPost)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&backend, "backend", actions.BackendBrowser, "browser, api or helper")
	return cmd
}
