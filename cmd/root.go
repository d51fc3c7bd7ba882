package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"contextiq/internal/config"
	"contextiq/internal/embedding"
	"contextiq/internal/llmservice"
	"contextiq/internal/provenance"
	"contextiq/internal/session"
	"contextiq/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg *config.Config
}

func NewRootCmd(version string) *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "contextiq",
		Short:         "Ask questions about a document",
		Long:          `Parse a document, index its chunks and answer questions grounded in it with a language model.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", configFilePath, "Path to the config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace|debug|info|warn|error)")

	cfg := func() *config.Config { return a.cfg }
	rootCmd.AddCommand(
		NewParseCmd(cfg),
		NewIndexCmd(cfg),
		NewAskCmd(cfg),
		NewChatCmd(cfg),
	)
	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if err := setupLogger(cfg.Log, cmd.ErrOrStderr()); err != nil {
		return err
	}
	log.Debug().Str("path", path).Interface("config", cfg.Log).Msg("Loaded config")
	a.cfg = cfg
	return nil
}

func setupLogger(cfg config.LogConfig, out io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
		return nil
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Caller().Logger()
	return nil
}

// newSession wires the configured collaborators. The returned close func
// releases the provenance backend.
func newSession(ctx context.Context, cfg *config.Config) (*session.Session, func(), error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize embedder: %w", err)
	}
	generator, err := llmservice.NewGenerator(&cfg.InferenceLLM)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize generator: %w", err)
	}
	recorder, err := provenance.NewRecorder(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize provenance: %w", err)
	}

	s, err := session.New(session.Deps{
		Embedder:  embedder,
		Generator: generator,
		NewIndex:  func() (vectorstore.Index, error) { return vectorstore.New(&cfg.Index) },
		Recorder:  recorder,
	}, session.OptionsFromConfig(cfg))
	if err != nil {
		recorder.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := recorder.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing provenance backend")
		}
	}
	return s, closeFn, nil
}

// logOutput points the global logger somewhere other than the terminal,
// used while the TUI owns the screen.
func logOutput(w io.Writer) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
