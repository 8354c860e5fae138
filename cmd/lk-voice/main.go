package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	_ "github.com/chriscow/lk-voice/pkg/plugin/fake"   // Import to register fake plugins
	_ "github.com/chriscow/lk-voice/pkg/plugin/gemini" // Import to register Gemini plugin
	_ "github.com/chriscow/lk-voice/pkg/plugin/openai" // Import to register OpenAI plugin
	"github.com/chriscow/lk-voice/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "lk-voice",
	Short: "LiveKit voice assistant - session API, token issuer and voice agent worker",
	Long: `lk-voice runs the HTTP API that issues LiveKit room tokens and records
conversation sessions, and the agent worker that joins rooms as Maya or Miles.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if !versionJSON {
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

var versionJSON bool

func setupLogger() *slog.Logger {
	logFormat := os.Getenv("LK_LOG_FORMAT")
	logLevel := strings.ToLower(os.Getenv("LK_LOG_LEVEL"))

	var handler slog.Handler
	opts := &slog.HandlerOptions{}

	switch logLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if logFormat == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build info as JSON")
	rootCmd.AddCommand(versionCmd, apiCmd, workerCmd, tokenCmd, pluginCmd, sttCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
