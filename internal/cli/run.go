package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivanshev/segcut/internal/logging"
	"github.com/ivanshev/segcut/internal/pipeline"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <transcript.json> [transcript.json ...]",
		Short: "Segment transcript files and write a clip manifest",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBatch,
	}
	cmd.Flags().String("out", "out", "Output directory")
	cmd.Flags().String("topic", "", "Topic to extract; empty means generic summarization")
	cmd.Flags().String("platform", "", "Platform profile (tiktok, instagram_reels, youtube_shorts, universal)")
	cmd.Flags().Int("clips", 5, "Maximum clips per file")
	cmd.Flags().String("db", "", "SQLite run-history path (empty disables persistence)")
	cmd.Flags().String("profiles", "", "External platform profiles TOML file")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	topic, _ := cmd.Flags().GetString("topic")
	platformName, _ := cmd.Flags().GetString("platform")
	clips, _ := cmd.Flags().GetInt("clips")
	dbPath, _ := cmd.Flags().GetString("db")
	profilesPath, _ := cmd.Flags().GetString("profiles")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logger := logging.NewLogger(logLevel)

	inputs := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return err
		}
		inputs = append(inputs, abs)
	}

	cfg := pipeline.Config{
		Inputs:       inputs,
		OutDir:       outDir,
		Topic:        topic,
		Platform:     platformName,
		MaxClips:     clips,
		DBPath:       dbPath,
		ProfilesPath: profilesPath,

		OpenRouterAPIKey:       os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:        os.Getenv("OPENROUTER_MODEL"),
		OpenRouterBaseURL:      getenvDefault("SEGCUT_LLM_BASE_URL", "https://openrouter.ai"),
		OpenRouterAllowedHosts: allowedHostsFromEnv(),

		Logger: logger,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manifest, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}

	failed := 0
	for _, f := range manifest.Files {
		if f.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(manifest.Files))
	}
	return nil
}
