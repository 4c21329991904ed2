package api

import (
	"github.com/ivanshev/segcut/internal/store"
	"github.com/ivanshev/segcut/internal/types"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	UptimeS   int64    `json:"uptime_s"`
	Platforms []string `json:"platforms"`
}

// SegmentRequest submits one transcript for segmentation. Platform and topic
// are optional: no platform means the generic profile-free ranking, no topic
// means generic summarization of the whole recording.
type SegmentRequest struct {
	Transcript types.Transcript `json:"transcript"`
	Source     string           `json:"source,omitempty"`
	Topic      string           `json:"topic,omitempty"`
	Platform   string           `json:"platform,omitempty"`
	MaxClips   int              `json:"max_clips,omitempty"`
}

// ReanalyzeRequest reruns a stored run's transcript with different knobs.
// Empty fields keep the original run's values.
type ReanalyzeRequest struct {
	Topic    string `json:"topic,omitempty"`
	Platform string `json:"platform,omitempty"`
	MaxClips int    `json:"max_clips,omitempty"`
}

type SegmentResponse struct {
	Start           float64  `json:"start"`
	End             float64  `json:"end"`
	StartHMS        string   `json:"start_hms"`
	EndHMS          string   `json:"end_hms"`
	Summary         string   `json:"summary"`
	Tags            []string `json:"tags"`
	WordCount       int      `json:"word_count"`
	RelevanceScore  float64  `json:"relevance_score"`
	EngagementScore float64  `json:"engagement_score"`
	CompositeScore  float64  `json:"composite_score"`
	ViralPotential  string   `json:"viral_potential"`
}

type RunResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Source    string            `json:"source,omitempty"`
	Topic     string            `json:"topic,omitempty"`
	Platform  string            `json:"platform,omitempty"`
	MaxClips  int               `json:"max_clips,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Error     string            `json:"error,omitempty"`
	Segments  []SegmentResponse `json:"segments,omitempty"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

func SegmentToResponse(s types.ScoredSegment) SegmentResponse {
	return SegmentResponse{
		Start:           s.Start,
		End:             s.End,
		StartHMS:        types.FormatHMS(s.Start),
		EndHMS:          types.FormatHMS(s.End),
		Summary:         s.Summary,
		Tags:            s.Tags,
		WordCount:       s.WordCount,
		RelevanceScore:  s.RelevanceScore,
		EngagementScore: s.EngagementScore,
		CompositeScore:  s.CompositeScore,
		ViralPotential:  string(s.ViralPotential),
	}
}

func RunToResponse(r store.Run) RunResponse {
	resp := RunResponse{
		ID:        r.ID,
		Status:    string(r.Status),
		Source:    r.Source,
		Topic:     r.Topic,
		Platform:  r.Platform,
		MaxClips:  r.MaxClips,
		Reason:    r.Reason,
		Error:     r.Error,
		CreatedAt: r.CreatedAt.Format(timeLayout),
		UpdatedAt: r.UpdatedAt.Format(timeLayout),
	}
	for _, s := range r.Segments {
		resp.Segments = append(resp.Segments, SegmentToResponse(s))
	}
	return resp
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
