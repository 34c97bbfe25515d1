package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabfab/docqa/client"
	"github.com/fabfab/docqa/history"
)

func newChatCmd(a *app) *cobra.Command {
	var documentID, server string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running server about one document",
		Long: `Starts an interactive session about one document. The transcript is kept
in the configured history backend; type /history to print it, /clear to
forget it and /exit to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, closeStore, err := openHistory(ctx, a.cfg.History)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer closeStore()

			session := client.NewSession(a.apiClient(server), store, documentID)
			return runChat(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&documentID, "document", "d", "", "document id")
	addServerFlag(cmd, &server)
	_ = cmd.MarkFlagRequired("document")
	return cmd
}

func runChat(ctx context.Context, session *client.Session, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Chatting about %s. Commands: /history, /clear, /exit\n", session.DocumentID())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/history":
			messages, err := session.Messages(ctx)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			printTranscript(out, messages)
			continue
		case "/clear":
			if err := session.Clear(ctx); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			fmt.Fprintln(out, "History cleared.")
			continue
		}

		reply, err := session.Send(ctx, line)
		if err != nil {
			if errors.Is(err, client.ErrEmptyMessage) {
				continue
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, reply.Content)
	}
}

func printTranscript(out io.Writer, messages []history.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return
	}
	for _, m := range messages {
		fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04:05"), m.Role, m.Content)
	}
}
