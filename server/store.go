package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for store operations.
var (
	ErrRecordExists   = errors.New("history record already exists")
	ErrRecordNotFound = errors.New("history record not found")
)

// HistoryRecord is one stored /integrate outcome. Exactly one of Area and
// Error is set.
type HistoryRecord struct {
	ID            string    `json:"id"`
	Expression    string    `json:"expression"`
	Lower         float64   `json:"lower_limit"`
	Upper         float64   `json:"upper_limit"`
	Area          *float64  `json:"area"`
	Error         string    `json:"error,omitempty"`
	Category      string    `json:"category,omitempty"`
	ErrorEstimate float64   `json:"error_estimate"`
	Evaluations   int       `json:"evaluations"`
	DurationMS    float64   `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryStore persists calculation history.
type HistoryStore interface {
	Append(ctx context.Context, rec HistoryRecord) error
	// List returns at most limit records, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]HistoryRecord, error)
	Get(ctx context.Context, id string) (HistoryRecord, bool, error)
	// Prune deletes records created before olderThan (ignored when zero) and
	// all but the newest keep records (ignored when keep <= 0). It returns
	// the number of records removed.
	Prune(ctx context.Context, olderThan time.Time, keep int) (int, error)
	Close() error
}

func newRecordID() string {
	return uuid.NewString()
}
