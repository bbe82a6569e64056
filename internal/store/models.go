package store

import (
	"time"

	"github.com/ibeckermayer/igwarmup/internal/types"
)

// FetchedPost is one row of newest-post history
type FetchedPost struct {
	ID        int64               `json:"id"`
	Username  string              `json:"username"`
	Backend   string              `json:"backend"` // "browser", "api" or "helper"
	Post      types.ExtractedPost `json:"post"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// Run is one finished action invocation
type Run struct {
	ID        string        `json:"id"`
	Action    string        `json:"action"`
	Subject   string        `json:"subject"`
	Success   bool          `json:"success"`
	Kind      string        `json:"kind,omitempty"`
	Message   string        `json:"message"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
