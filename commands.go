package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fabfab/docqa/client"
	"github.com/fabfab/docqa/ingestion"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>",
		Short: "Ingest a PDF directly into the configured stores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			result, err := rt.ingestion().Ingest(ctx, ingestion.Request{
				Filename:    filepath.Base(args[0]),
				ContentType: mime.TypeByExtension(filepath.Ext(args[0])),
				Data:        data,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Document ID: %s\n", result.DocumentID)
			fmt.Fprintf(out, "Pages: %d, chunks: %d\n", result.PageCount, result.ChunkCount)
			fmt.Fprintf(out, "Summary: %s\n", result.Summary)
			return nil
		},
	}
}

func newAskCmd(a *app) *cobra.Command {
	var documentID, question string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer one question about an ingested document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			answer, err := rt.chat().Ask(ctx, question, documentID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&documentID, "document", "d", "", "document id")
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to ask")
	_ = cmd.MarkFlagRequired("document")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF to a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			result, err := a.apiClient(server).Upload(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Document ID: %s\n", result.DocumentID)
			fmt.Fprintf(out, "Pages: %d\n", result.PageCount)
			fmt.Fprintf(out, "Summary: %s\n", result.Summary)
			return nil
		},
	}
	addServerFlag(cmd, &server)
	return cmd
}

func newDocumentsCmd(a *app) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List documents known to a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := a.apiClient(server).Documents(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILENAME\tPAGES\tCHUNKS\tUPLOADED")
			for _, doc := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					doc.ID, doc.Filename, doc.PageCount, doc.ChunkCount, doc.UploadedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	addServerFlag(cmd, &server)
	return cmd
}

func addServerFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVar(dst, "server", "", "server base URL (overrides SERVER_URL)")
}

func (a *app) apiClient(server string) *client.APIClient {
	if server == "" {
		server = a.cfg.ServerURL
	}
	return client.NewAPIClient(server, nil)
}

// confirm asks a y/N question on in. Anything other than y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
