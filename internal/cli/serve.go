package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivanshev/segcut/internal/api"
	"github.com/ivanshev/segcut/internal/logging"
	"github.com/ivanshev/segcut/internal/platform"
	"github.com/ivanshev/segcut/internal/ports"
	"github.com/ivanshev/segcut/internal/ports/adapters/openrouter"
	"github.com/ivanshev/segcut/internal/store"
	"github.com/ivanshev/segcut/internal/usecase"
)

const version = "0.1.0"

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the segmentation HTTP API",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	cmd.Flags().Int("port", 8787, "Listen port (loopback only)")
	cmd.Flags().String("db", "segcut.db", "SQLite run-history path")
	cmd.Flags().String("profiles", "", "External platform profiles TOML file")
	return cmd
}

func serve(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")
	dbPath, _ := cmd.Flags().GetString("db")
	profilesPath, _ := cmd.Flags().GetString("profiles")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logger := logging.NewLogger(logLevel)

	baseURL := getenvDefault("SEGCUT_LLM_BASE_URL", "https://openrouter.ai")
	var querier ports.RelevanceQuerier
	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		if err := openrouter.ValidateBaseURL(baseURL, allowedHostsFromEnv()); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		querier = openrouter.New(apiKey, os.Getenv("OPENROUTER_MODEL"), baseURL, logging.WithComponent(logger, "openrouter"))
	} else {
		logger.Info("no API key configured, using fallback matching only")
	}

	profiles := platform.Default()
	if profilesPath != "" {
		var err error
		profiles, err = platform.Load(profilesPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	st, err := store.Open(dbPath, logging.WithComponent(logger, "store"))
	if err != nil {
		return err
	}
	defer st.Close()

	srv := api.NewServer(api.ServerConfig{
		Port:      port,
		Engine:    usecase.New(querier, logging.WithComponent(logger, "engine"), usecase.Options{}),
		Store:     st,
		Profiles:  profiles,
		Logger:    logging.WithComponent(logger, "api"),
		StartTime: time.Now(),
		Version:   version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
