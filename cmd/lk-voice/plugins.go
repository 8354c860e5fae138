package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chriscow/lk-voice/internal/config"
	"github.com/chriscow/lk-voice/pkg/ai/stt"
	"github.com/chriscow/lk-voice/pkg/plugin"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Provider plugin commands",
}

var pluginListCmd = &cobra.Command{
	Use:   "list [kind]",
	Short: "List registered providers",
	Long: `List all registered providers or providers of a specific kind.
Available kinds: llm, stt, tts`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ""
		if len(args) > 0 {
			kind = args[0]
		}

		plugins := plugin.List(kind)
		if len(plugins) == 0 {
			if kind == "" {
				fmt.Println("No plugins registered")
			} else {
				fmt.Printf("No plugins registered for kind: %s\n", kind)
			}
			return nil
		}

		fmt.Printf("%-8s %-20s %-10s %s\n", "KIND", "NAME", "VERSION", "DESCRIPTION")
		fmt.Println("------------------------------------------------------------")
		for _, p := range plugins {
			version := p.Version
			if version == "" {
				version = "N/A"
			}
			description := p.Description
			if description == "" {
				description = "No description"
			}
			fmt.Printf("%-8s %-20s %-10s %s\n", p.Kind, p.Name, version, description)
		}
		return nil
	},
}

var sttCmd = &cobra.Command{
	Use:   "stt",
	Short: "Speech-to-text commands",
}

var sttTranscribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe an audio file with the configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, _ := cmd.Flags().GetString("file")
		provider, _ := cmd.Flags().GetString("provider")
		language, _ := cmd.Flags().GetString("language")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if provider != "" {
			cfg.STTProvider = provider
		}

		logger := setupLogger()
		logger.Info("Starting transcription",
			slog.String("service", "lk-voice"),
			slog.String("file", filePath),
			slog.String("provider", cfg.STTProvider))

		recognizer, err := plugin.NewSTT(cfg.STTProvider, cfg.ProviderOptions("stt"))
		if err != nil {
			return err
		}

		f, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		tr, err := recognizer.Transcribe(ctx, stt.TranscribeRequest{
			Audio:    f,
			Filename: f.Name(),
			Language: language,
		})
		if err != nil {
			return fmt.Errorf("transcribe: %w", err)
		}
		fmt.Printf("Transcript: %s\n", tr.Text)
		return nil
	},
}

func init() {
	sttTranscribeCmd.Flags().String("file", "", "Path to an audio file (ogg, wav, mp3)")
	sttTranscribeCmd.Flags().String("provider", "", "STT provider (overrides STT_PROVIDER)")
	sttTranscribeCmd.Flags().String("language", "", "Language hint, for example en")
	sttTranscribeCmd.MarkFlagRequired("file")

	pluginCmd.AddCommand(pluginListCmd)
	sttCmd.AddCommand(sttTranscribeCmd)
}
