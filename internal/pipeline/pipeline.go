// Package pipeline runs batch segmentation over transcript files: it wires
// the adapters, fans one worker out per input file, records runs in the local
// store, and writes a JSON manifest for the batch.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ivanshev/segcut/internal/platform"
	"github.com/ivanshev/segcut/internal/ports"
	"github.com/ivanshev/segcut/internal/ports/adapters/openrouter"
	"github.com/ivanshev/segcut/internal/store"
	"github.com/ivanshev/segcut/internal/types"
	"github.com/ivanshev/segcut/internal/usecase"
)

type Config struct {
	// Inputs are transcript JSON files, one segmentation run each.
	Inputs   []string
	OutDir   string
	Topic    string
	Platform string
	MaxClips int

	// DBPath enables run history persistence when set.
	DBPath string

	// ProfilesPath overrides the built-in platform profiles.
	ProfilesPath string

	OpenRouterAPIKey       string
	OpenRouterModel        string
	OpenRouterBaseURL      string
	OpenRouterAllowedHosts []string

	Logger *slog.Logger
}

func (c Config) Validate() error {
	if len(c.Inputs) == 0 {
		return errors.New("no input transcripts")
	}
	for _, in := range c.Inputs {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
	}
	if c.MaxClips < 0 {
		return fmt.Errorf("clips must be >= 0")
	}
	if c.OpenRouterAPIKey == "" {
		return nil
	}
	return openrouter.ValidateBaseURL(c.OpenRouterBaseURL, c.OpenRouterAllowedHosts)
}

// Manifest is the batch-level output: one entry per input file, in input
// order.
type Manifest struct {
	GeneratedAt string         `json:"generated_at"`
	Topic       string         `json:"topic,omitempty"`
	Platform    string         `json:"platform,omitempty"`
	Files       []FileManifest `json:"files"`
}

type FileManifest struct {
	Input    string         `json:"input"`
	RunID    string         `json:"run_id,omitempty"`
	Error    string         `json:"error,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Segments []ClipManifest `json:"segments,omitempty"`
}

type ClipManifest struct {
	types.ScoredSegment
	StartHMS string `json:"start_hms"`
	EndHMS   string `json:"end_hms"`
}

// Run executes the batch and writes the manifest into a per-run output
// directory. A single file failing does not abort the batch; its manifest
// entry carries the error instead.
func Run(ctx context.Context, cfg Config) (Manifest, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	profile, err := resolveProfile(cfg)
	if err != nil {
		return Manifest{}, err
	}

	var querier ports.RelevanceQuerier
	if cfg.OpenRouterAPIKey != "" {
		querier = openrouter.New(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL, logger)
	} else {
		logger.Info("no API key configured, using fallback matching only")
	}

	var st *store.Store
	if cfg.DBPath != "" {
		st, err = store.Open(cfg.DBPath, logger)
		if err != nil {
			return Manifest{}, fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
	}

	engine := usecase.New(querier, logger, usecase.Options{MaxClips: cfg.MaxClips})

	// One worker per input; each writes only its own slot.
	entries := make([]FileManifest, len(cfg.Inputs))
	var wg sync.WaitGroup
	for i, input := range cfg.Inputs {
		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			entries[i] = processFile(ctx, engine, st, profile, cfg, input, logger)
		}(i, input)
	}
	wg.Wait()

	manifest := Manifest{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Topic:       cfg.Topic,
		Platform:    cfg.Platform,
		Files:       entries,
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.Inputs[0], time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return Manifest{}, err
	}
	b, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return Manifest{}, err
	}
	logger.Info("manifest written", "path", manifestPath, "files", len(manifest.Files))
	return manifest, nil
}

func resolveProfile(cfg Config) (*types.PlatformProfile, error) {
	if cfg.Platform == "" {
		return nil, nil
	}
	reg := platform.Default()
	if cfg.ProfilesPath != "" {
		var err error
		reg, err = platform.Load(cfg.ProfilesPath)
		if err != nil {
			return nil, err
		}
	}
	p, ok := reg.Get(cfg.Platform)
	if !ok {
		return nil, fmt.Errorf("unknown platform %q, available: %s", cfg.Platform, strings.Join(reg.Names(), ", "))
	}
	return &p, nil
}

func processFile(ctx context.Context, engine *usecase.Engine, st *store.Store, profile *types.PlatformProfile, cfg Config, input string, logger *slog.Logger) FileManifest {
	entry := FileManifest{Input: input}
	log := logger.With("input", input)

	raw, err := os.ReadFile(input)
	if err != nil {
		entry.Error = err.Error()
		log.Error("read transcript failed", "error", err)
		return entry
	}
	var transcript types.Transcript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		entry.Error = fmt.Sprintf("parse transcript: %v", err)
		log.Error("parse transcript failed", "error", err)
		return entry
	}

	var runID string
	if st != nil {
		run, err := st.CreateRun(ctx, store.Run{
			Source:     filepath.Base(input),
			Topic:      cfg.Topic,
			Platform:   cfg.Platform,
			MaxClips:   cfg.MaxClips,
			Transcript: raw,
		})
		if err != nil {
			log.Warn("failed to record run", "error", err)
		} else {
			runID = run.ID
			if err := st.MarkRunning(ctx, runID); err != nil {
				log.Warn("failed to mark run running", "error", err)
			}
		}
	}
	entry.RunID = runID

	res, err := engine.Segment(ctx, usecase.Request{
		Transcript: transcript,
		Topic:      cfg.Topic,
		Profile:    profile,
		MaxClips:   cfg.MaxClips,
	})
	if err != nil {
		entry.Error = err.Error()
		if st != nil && runID != "" {
			if ferr := st.FailRun(context.WithoutCancel(ctx), runID, err.Error()); ferr != nil {
				log.Warn("failed to record run failure", "error", ferr)
			}
		}
		log.Error("segmentation failed", "error", err)
		return entry
	}

	entry.Reason = res.Reason
	for _, seg := range res.Segments {
		entry.Segments = append(entry.Segments, ClipManifest{
			ScoredSegment: seg,
			StartHMS:      types.FormatHMS(seg.Start),
			EndHMS:        types.FormatHMS(seg.End),
		})
	}
	if st != nil && runID != "" {
		if err := st.CompleteRun(ctx, runID, res); err != nil {
			log.Warn("failed to record run result", "error", err)
		}
	}
	log.Info("file segmented", "segments", len(res.Segments), "reason", res.Reason)
	return entry
}

func buildRunOutDir(outRoot, firstInput string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(firstInput), filepath.Ext(firstInput))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", firstInput, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
