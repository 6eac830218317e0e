package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/comigor/chatsync-go/internal/conversation"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (/clear empties the transcript, /quit exits)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			eng := a.engine()
			defer eng.Close()

			if err := eng.Load(ctx); err != nil {
				return err
			}
			printMessages(out, eng.Messages())
			if msg := eng.Error(); msg != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "! %s\n", msg)
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				line := scanner.Text()
				switch strings.TrimSpace(line) {
				case "/quit", "/exit":
					return nil
				case "/clear":
					eng.Clear(ctx)
					fmt.Fprintln(out, "(cleared)")
					continue
				}

				before := len(eng.Messages())
				if err := eng.SendText(ctx, line); err != nil {
					if errors.Is(err, conversation.ErrClosed) {
						return nil
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "! %v\n", err)
					continue
				}
				// skip the echo of our own message
				if msgs := eng.Messages(); len(msgs) > before+1 {
					printMessages(out, msgs[before+1:])
				}
				if msg := eng.Error(); msg != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "! %s\n", msg)
				}
			}
			return scanner.Err()
		},
	}
}
