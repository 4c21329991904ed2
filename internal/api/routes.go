package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivanshev/segcut/internal/store"
	"github.com/ivanshev/segcut/internal/types"
	"github.com/ivanshev/segcut/internal/usecase"
)

// Segmenter runs one transcript through the segmentation pipeline.
type Segmenter interface {
	Segment(ctx context.Context, req usecase.Request) (types.Result, error)
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/segment", segmentHandler(cfg))
		r.Get("/runs", listRunsHandler(cfg))
		r.Get("/runs/{id}", getRunHandler(cfg))
		r.Post("/runs/{id}/reanalyze", reanalyzeHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Version:   cfg.Version,
			UptimeS:   int64(time.Since(cfg.StartTime).Seconds()),
			Platforms: cfg.Profiles.Names(),
		})
	}
}

func segmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SegmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		profile, ok := cfg.resolveProfile(req.Platform)
		if !ok {
			WriteError(w, http.StatusBadRequest, "unknown platform: "+req.Platform, "BAD_REQUEST")
			return
		}

		transcript, err := json.Marshal(req.Transcript)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid transcript", "BAD_REQUEST")
			return
		}

		run, err := cfg.Store.CreateRun(r.Context(), store.Run{
			Source:     req.Source,
			Topic:      req.Topic,
			Platform:   req.Platform,
			MaxClips:   req.MaxClips,
			Transcript: transcript,
		})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to record run", "INTERNAL_ERROR")
			return
		}

		cfg.executeRun(w, r, run, req.Transcript, profile, req.Topic, req.MaxClips)
	}
}

func reanalyzeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		run, err := cfg.Store.GetRun(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load run", "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}
		if len(run.Transcript) == 0 {
			WriteError(w, http.StatusConflict, "run has no stored transcript", "NO_TRANSCRIPT")
			return
		}

		var req ReanalyzeRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
				return
			}
		}
		if req.Topic != "" {
			run.Topic = req.Topic
		}
		if req.Platform != "" {
			run.Platform = req.Platform
		}
		if req.MaxClips > 0 {
			run.MaxClips = req.MaxClips
		}

		profile, ok := cfg.resolveProfile(run.Platform)
		if !ok {
			WriteError(w, http.StatusBadRequest, "unknown platform: "+run.Platform, "BAD_REQUEST")
			return
		}

		var transcript types.Transcript
		if err := json.Unmarshal(run.Transcript, &transcript); err != nil {
			WriteError(w, http.StatusInternalServerError, "stored transcript is corrupt", "INTERNAL_ERROR")
			return
		}

		if err := cfg.Store.UpdateParams(r.Context(), run.ID, run.Topic, run.Platform, run.MaxClips); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to update run", "INTERNAL_ERROR")
			return
		}
		cfg.executeRun(w, r, *run, transcript, profile, run.Topic, run.MaxClips)
	}
}

// executeRun drives one synchronous segmentation and writes the resulting run
// back to the client. Store failures after a successful segmentation are
// logged but do not fail the request; the caller already has the result.
func (cfg ServerConfig) executeRun(w http.ResponseWriter, r *http.Request, run store.Run, transcript types.Transcript, profile *types.PlatformProfile, topic string, maxClips int) {
	ctx := r.Context()
	if err := cfg.Store.MarkRunning(ctx, run.ID); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to update run", "INTERNAL_ERROR")
		return
	}

	res, err := cfg.Engine.Segment(ctx, usecase.Request{
		Transcript: transcript,
		Topic:      topic,
		Profile:    profile,
		MaxClips:   maxClips,
	})
	if err != nil {
		if ferr := cfg.Store.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
			cfg.Logger.Error("failed to record run failure", "run_id", run.ID, "error", ferr)
		}
		WriteError(w, http.StatusInternalServerError, "segmentation failed: "+err.Error(), "INTERNAL_ERROR")
		return
	}

	if err := cfg.Store.CompleteRun(ctx, run.ID, res); err != nil {
		cfg.Logger.Error("failed to record run result", "run_id", run.ID, "error", err)
	}

	stored, err := cfg.Store.GetRun(ctx, run.ID)
	if err != nil || stored == nil {
		cfg.Logger.Error("failed to reload run", "run_id", run.ID, "error", err)
		run.Status = store.RunDone
		run.Reason = res.Reason
		run.Segments = res.Segments
		WriteJSON(w, http.StatusOK, RunToResponse(run))
		return
	}
	WriteJSON(w, http.StatusOK, RunToResponse(*stored))
}

func (cfg ServerConfig) resolveProfile(platformName string) (*types.PlatformProfile, bool) {
	if platformName == "" {
		return nil, true
	}
	p, ok := cfg.Profiles.Get(platformName)
	if !ok {
		return nil, false
	}
	return &p, true
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "invalid limit", "BAD_REQUEST")
				return
			}
			limit = n
		}

		runs, err := cfg.Store.ListRuns(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}
		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, run := range runs {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := cfg.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load run", "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, RunToResponse(*run))
	}
}
