// Package main provides the livechat command line client.
//
// It drives the SDK end to end: a live chat session with reconnects, room
// management and history over the REST API, and file uploads.
//
// # Basic Usage
//
// Chat in a room:
//
//	livechat chat --room general
//
// Manage rooms and history:
//
//	livechat rooms list
//	livechat rooms create "Study group" --type private --participant u2
//	livechat history general --limit 50
//
// # Environment Variables
//
// Every config key can be set as LIVECHAT_<SECTION>_<KEY>, for example:
//
//   - LIVECHAT_CLIENT_URL: websocket endpoint
//   - LIVECHAT_CLIENT_TOKEN: bearer token
//   - LIVECHAT_API_BASE_URL: REST API base URL
//   - LIVECHAT_LOG_LEVEL: debug, info, warn or error
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Error().Err(err).Msg("command execution failed")
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:          "livechat",
		Short:        "livechat - realtime chat client",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (or set LIVECHAT_CONFIG)")

	load := func() (*Config, error) { return LoadConfig(configPath) }
	rootCmd.AddCommand(
		buildChatCmd(load),
		buildWatchCmd(load),
		buildRoomsCmd(load),
		buildHistoryCmd(load),
		buildUploadCmd(load),
		buildWhoamiCmd(load),
	)
	return rootCmd
}
