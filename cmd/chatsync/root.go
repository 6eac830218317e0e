package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/chatsync-go/internal/config"
	"github.com/comigor/chatsync-go/internal/conversation"
	"github.com/comigor/chatsync-go/internal/history"
	"github.com/comigor/chatsync-go/internal/kv"
	"github.com/comigor/chatsync-go/internal/logger"
	"github.com/comigor/chatsync-go/internal/remote"
)

// profileScope holds per-profile keys (the user id); sessions get their own scope.
const profileScope = "profile"

// app is the state shared by subcommands once the root pre-run has loaded it.
type app struct {
	cfg   *config.Config
	db    *kv.DB
	store *history.Store
}

func (a *app) engine() *conversation.Engine {
	client := remote.NewClient(a.cfg.Client.BaseURL, nil)
	return conversation.New(client, a.store, conversation.Options{
		HistoryTimeout:  a.cfg.Client.HistoryTimeout,
		PersistFailures: a.cfg.Client.PersistFailures,
	})
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		session string
		verbose bool
	)
	a := &app{}

	root := &cobra.Command{
		Use:           "chatsync",
		Short:         "Chat with a conversation service, keeping a local transcript cache",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				os.Setenv("CONFIG_PATH", cfgFile)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if session != "" {
				cfg.Client.Session = session
			}

			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(cfg.LogLevel)
			if verbose {
				logger.SetLevel("debug")
			}

			db, err := kv.Open(cfg.Client.StorePath)
			if err != nil {
				// the chat still works without a cache
				logger.L.Warn("local cache unavailable; using memory", "path", cfg.Client.StorePath, "error", err)
				a.store = history.NewStore(kv.NewMemory(), kv.NewMemory())
			} else {
				a.db = db
				a.store = history.NewStore(db.Scope("session:"+cfg.Client.Session), db.Scope(profileScope))
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().StringVarP(&session, "session", "s", "", "session name for the local cache (overrides client.session)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(newChatCmd(a), newHistoryCmd(a), newClearCmd(a), newWhoamiCmd(a))
	return root
}

func printMessages(w io.Writer, msgs []history.Message) {
	for _, m := range msgs {
		label := "AI:"
		if m.Sender() == "user" {
			label = "You:"
		}
		fmt.Fprintf(w, "%s %s\n", label, m.Content)
	}
}
