package main

// @title memvault API
// @version 1.0
// @description Multi-tenant memory store for autonomous agents: namespaced knowledge, events and requirements with keyword and semantic recall.

// @contact.name API Support
// @contact.url https://github.com/memvault/memvault

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8088
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/version"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	port       int
	logLevel   string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "memvault",
		Short: "Multi-tenant memory store for autonomous agents",
		Long: `memvault stores knowledge items, events and requirements in isolated
namespaces and serves keyword and semantic recall over HTTP.

Running memvault without a subcommand is the same as "memvault serve".`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flags.IntVar(&opts.port, "port", 0, "Override server port")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log level")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug mode")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd(opts))
	return root
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(version.Info())
			}
			printVersion(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print build metadata as JSON")
	return cmd
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "memvault - agent memory store\n")
	fmt.Fprintf(w, "Version:    %s\n", version.Version)
	fmt.Fprintf(w, "Build Time: %s\n", version.BuildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", version.GitCommit)
	fmt.Fprintf(w, "Go Version: %s\n", version.GoVersion)
}

// buildOverrides maps explicitly set flags onto config keys.
func buildOverrides(opts *options) map[string]interface{} {
	overrides := make(map[string]interface{})

	if opts.port != 0 {
		overrides["server.port"] = opts.port
	}
	if opts.logLevel != "" {
		overrides["log.level"] = opts.logLevel
	}
	if opts.debug {
		overrides["app.debug"] = true
	}

	return overrides
}
