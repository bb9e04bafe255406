// Command tidytable serves a tabular data wrangling API: chunked uploads,
// cleaning and transform operations with a revertable change history, data
// profiling, and an MCP tool surface for agents.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tidytable/tidytable/wrangle"
)

var version = "0.1.0"

var (
	cfgFile      string
	flagAddr     string
	flagLogLevel string
	flagMCP      bool
)

var rootCmd = &cobra.Command{
	Use:   "tidytable",
	Short: "Clean, transform, and profile tabular data over HTTP and MCP",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tidytable version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("tidytable " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	serveCmd.Flags().BoolVar(&flagMCP, "mcp", false, "also serve MCP tools on stdio")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

// buildConfig layers configuration: file, then environment, then flags.
func buildConfig(cmd *cobra.Command) (*wrangle.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("TIDYTABLE_CONFIG")
	}

	var cfg *wrangle.Config
	if path != "" {
		c, err := wrangle.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	} else {
		cfg = wrangle.DefaultConfig()
	}

	cfg.Addr = env("TIDYTABLE_ADDR", cfg.Addr)
	cfg.AuditDB = env("AUDIT_DB", cfg.AuditDB)
	cfg.UploadDir = env("UPLOAD_DIR", cfg.UploadDir)
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)

	if cmd.Flags().Changed("addr") {
		cfg.Addr = flagAddr
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if cmd.Flags().Changed("mcp") {
		cfg.MCPEnabled = flagMCP
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
