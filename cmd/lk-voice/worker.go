package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chriscow/lk-voice/internal/config"
	"github.com/chriscow/lk-voice/internal/observability"
	"github.com/chriscow/lk-voice/internal/worker"
	"github.com/chriscow/lk-voice/pkg/agent"
	"github.com/chriscow/lk-voice/pkg/job"
	"github.com/chriscow/lk-voice/pkg/plugin"
	"github.com/chriscow/lk-voice/pkg/version"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Voice agent worker commands",
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Register with LiveKit and join dispatched rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := loadWorkerConfig()
		if err != nil {
			return err
		}

		logger := setupLogger()
		logger.Info("Starting worker",
			slog.String("service", "lk-voice"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("url", cfg.LiveKitURL),
			slog.String("agent_name", cfg.AgentName),
			slog.Bool("dry_run", dryRun))

		metrics := observability.NewMetrics(cfg.MetricsNamespace)
		entry, err := buildEntrypoint(cfg, metrics, logger)
		if err != nil {
			return err
		}
		if dryRun {
			logger.Info("Dry run mode - exiting")
			return nil
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		issuer := cfg.Issuer()
		w := worker.New(worker.Config{
			URL:       cfg.LiveKitURL,
			Token:     issuer.IssueWorker,
			AgentName: cfg.AgentName,
			Version:   version.Version,
			Handler:   entry,
		}, logger)

		if cfg.WorkerMetricsAddr != "" {
			metrics.TrackWorker(w)
			go serveMetrics(ctx, cfg, metrics, logger)
		}

		if err := w.Run(ctx); err != nil {
			logger.Error("Worker failed", slog.String("error", err.Error()))
			return err
		}
		return nil
	},
}

var workerJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join one room directly, without dispatch",
	RunE: func(cmd *cobra.Command, args []string) error {
		roomName, _ := cmd.Flags().GetString("room")
		identity, _ := cmd.Flags().GetString("identity")

		cfg, err := loadWorkerConfig()
		if err != nil {
			return err
		}

		logger := setupLogger()
		logger.Info("Joining room",
			slog.String("service", "lk-voice"),
			slog.String("room", roomName),
			slog.String("url", cfg.LiveKitURL))

		if identity == "" {
			identity = "agent-" + roomName
		}
		grant, err := cfg.Issuer().IssueAgent(identity, roomName)
		if err != nil {
			return fmt.Errorf("issue agent token: %w", err)
		}

		metrics := observability.NewMetrics(cfg.MetricsNamespace)
		entry, err := buildEntrypoint(cfg, metrics, logger)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		j, err := job.New(ctx, job.Config{
			RoomName: roomName,
			URL:      grant.URL,
			Token:    grant.Token,
		})
		if err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		defer j.Shutdown("join finished")

		return entry(j.Context.Ctx, j)
	},
}

var workerHealthzCmd = &cobra.Command{
	Use:   "healthz",
	Short: "Validate worker configuration and providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		logger.Info("Performing health check",
			slog.String("service", "lk-voice"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit))

		cfg, err := loadWorkerConfig()
		if err != nil {
			return err
		}
		if _, err := buildEntrypoint(cfg, nil, logger); err != nil {
			return err
		}
		if _, err := cfg.Issuer().IssueWorker(); err != nil {
			return fmt.Errorf("worker token: %w", err)
		}

		logger.Info("Health check passed - configuration and providers validated")
		return nil
	},
}

func loadWorkerConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// buildEntrypoint creates the providers named in cfg and returns the job
// handler that runs one agent per room.
func buildEntrypoint(cfg config.Config, metrics *observability.Metrics, logger *slog.Logger) (worker.JobHandler, error) {
	model, err := plugin.NewLLM(cfg.LLMProvider, cfg.ProviderOptions("llm"))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	speech, err := plugin.NewTTS(cfg.TTSProvider, cfg.ProviderOptions("tts"))
	if err != nil {
		return nil, fmt.Errorf("tts provider: %w", err)
	}

	template := cfg.AgentConfig()
	template.LLM = model
	template.TTS = speech
	template.Logger = logger
	if cfg.ListenMode == agent.ListenTranscribe {
		template.STT, err = plugin.NewSTT(cfg.STTProvider, cfg.ProviderOptions("stt"))
		if err != nil {
			return nil, fmt.Errorf("stt provider: %w", err)
		}
	}
	if metrics != nil {
		template.Observer = metrics.AgentObserver()
	}

	logger.Info("Agent providers ready",
		slog.String("llm", cfg.LLMProvider),
		slog.String("tts", cfg.TTSProvider),
		slog.String("stt", cfg.STTProvider),
		slog.String("listen_mode", string(cfg.ListenMode)))

	return agent.NewEntrypoint(agent.EntrypointConfig{
		Template: template,
		Voices:   cfg.Voices(),
	}), nil
}

func serveMetrics(ctx context.Context, cfg config.Config, metrics *observability.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := serve(ctx, srv, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error("Metrics server failed", slog.String("error", err.Error()))
	}
}

func init() {
	workerRunCmd.Flags().Bool("dry-run", false, "Dry run mode - validate config and exit")

	workerJoinCmd.Flags().String("room", "", "Room name to join")
	workerJoinCmd.Flags().String("identity", "", "Agent participant identity (default agent-<room>)")
	workerJoinCmd.MarkFlagRequired("room")

	workerCmd.AddCommand(workerRunCmd, workerJoinCmd, workerHealthzCmd)
}
