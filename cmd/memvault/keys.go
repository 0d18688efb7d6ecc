package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/memvault/memvault/config"
	"github.com/memvault/memvault/pkg/auth"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/storage/sqlite"
)

func newKeysCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys directly in the store",
		Long: `Manage API keys without going through the HTTP API. Useful for
recovering admin access; the server does not need to be running.`,
	}
	cmd.AddCommand(newKeysCreateCmd(opts))
	cmd.AddCommand(newKeysListCmd(opts))
	return cmd
}

func newKeysCreateCmd(opts *options) *cobra.Command {
	var req auth.CreateKeyRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print its secret once",
		Long: `Create an API key and print its secret once.

Examples:
  memvault keys create --name ci --role writer --namespace default
  memvault keys create --name ops --role admin --namespace '*'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialStore(cmd.Context(), cmd.OutOrStdout(), opts, func(keys *auth.CredentialStore) error {
				issued, err := keys.CreateKey(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "id:         %s\n", issued.Credential.ID)
				fmt.Fprintf(out, "role:       %s\n", issued.Credential.Role)
				fmt.Fprintf(out, "namespaces: %s\n", strings.Join(issued.Credential.Namespaces, ","))
				fmt.Fprintf(out, "api_key:    %s\n", issued.Secret)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Key name")
	cmd.Flags().StringVar(&req.Role, "role", "reader", "Role: reader, writer or admin")
	cmd.Flags().StringSliceVar(&req.Namespaces, "namespace", nil, "Granted namespace (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("namespace")
	return cmd
}

func newKeysListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialStore(cmd.Context(), cmd.OutOrStdout(), opts, func(keys *auth.CredentialStore) error {
				list, err := keys.ListKeys(cmd.Context())
				if err != nil {
					return err
				}
				return printKeys(cmd.OutOrStdout(), list)
			})
		},
	}
}

func printKeys(w io.Writer, list []auth.KeyInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tNAMESPACES\tACTIVE\tKEY\tCREATED")
	for _, k := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			k.ID, k.Name, k.Role, strings.Join(k.Namespaces, ","), k.Active, k.KeyPreview,
			k.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// withCredentialStore opens the configured store for the duration of fn. A
// fresh store is bootstrapped first and its admin secret written to out.
func withCredentialStore(ctx context.Context, out io.Writer, opts *options, fn func(*auth.CredentialStore) error) error {
	cfg, err := config.Load(opts.configPath, buildOverrides(opts))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := sqlite.Open(sqlite.Config{
		Path:        cfg.Storage.SQLite.Path,
		BusyTimeout: cfg.Storage.SQLite.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	keys, err := auth.NewCredentialStore(store, auth.Config{
		CacheSize: cfg.Auth.CacheSize,
		CacheTTL:  cfg.Auth.CacheTTL,
	}, logger.Nop())
	if err != nil {
		return err
	}
	defer keys.Close()

	secret, err := keys.Bootstrap(ctx, cfg.Auth.BootstrapNamespaces)
	if err != nil {
		return err
	}
	if secret != "" {
		fmt.Fprintf(out, "bootstrap admin key (shown once): %s\n", secret)
	}
	return fn(keys)
}
