// Package server exposes extraction jobs over HTTP. It holds the handlers,
// middleware, routes and the DTOs that keep wire types apart from domain types.
package server

import "time"

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	// Source is a local video path or a URL yt-dlp can download.
	Source string `json:"source" validate:"required"`
	// Mode is "scenes" or "timestamps".
	Mode string `json:"mode" validate:"required,oneof=scenes timestamps"`
	// IntervalSeconds is the scene-mode sampling period. Zero uses the server default.
	IntervalSeconds int `json:"interval_seconds" validate:"omitempty,min=1,max=86400"`
	// SceneThreshold is the scene-mode difference threshold (0-255). Absent uses the server default.
	SceneThreshold *float64 `json:"scene_threshold,omitempty" validate:"omitempty,max=255"`
	// Timestamps are "M:SS" positions for timestamp mode.
	Timestamps []string `json:"timestamps,omitempty" validate:"required_if=Mode timestamps,dive,required"`
	// PushToS3 uploads every screenshot to the configured bucket.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ScreenshotResponse describes one persisted screenshot.
type ScreenshotResponse struct {
	Sequence   int     `json:"sequence"`
	FrameIndex int     `json:"frame_index"`
	Seconds    float64 `json:"seconds"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Reason     string  `json:"reason"`
	Path       string  `json:"path"`
	URL        string  `json:"url,omitempty"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID       string `json:"id"`
	Mode     string `json:"mode"`
	Status   string `json:"status"`
	Source   string `json:"source"`
	Progress int    `json:"progress"`
	// Processed and Total count frames in scene mode and timestamps in timestamp mode.
	Processed   int                  `json:"processed"`
	Total       int                  `json:"total"`
	Captured    int                  `json:"captured"`
	Skipped     int                  `json:"skipped"`
	Success     bool                 `json:"success"`
	OutputDir   string               `json:"output_dir"`
	Screenshots []ScreenshotResponse `json:"screenshots"`
	Error       string               `json:"error,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
