package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabfab/docqa/admin"
)

func newResetCmd(a *app) *cobra.Command {
	var (
		yes    bool
		server string
		token  string
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored chunk, catalog entry and archived upload",
		Long: `Empties the vector store. Without --token the configured stores are
cleared directly; with --token the reset is requested from a running server
through its admin route.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), out, "This deletes all stored documents. Continue?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			ctx := cmd.Context()
			if token != "" {
				msg, err := a.apiClient(server).Reset(ctx, token)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, msg)
				return nil
			}

			rt, err := buildRuntime(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			if err := rt.resetter().Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "All vectors have been deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "confirm", "y", false, "skip the confirmation prompt")
	cmd.Flags().StringVar(&token, "token", "", "admin bearer token; resets through the server instead of the local stores")
	addServerFlag(cmd, &server)
	return cmd
}

func newAdminTokenCmd(a *app) *cobra.Command {
	var (
		ttl     time.Duration
		subject string
	)

	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Issue an admin bearer token signed with ADMIN_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ttl <= 0 {
				ttl = a.cfg.Admin.TokenTTL
			}
			gate, err := admin.NewGate(a.cfg.Admin.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, err := gate.IssueToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to ADMIN_TOKEN_TTL)")
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	return cmd
}
