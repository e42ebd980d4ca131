// Package storage persists evolution runs.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/copyleftdev/darwin/internal/optimization"
)

// Run states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// VersionedRecord captures schema and codec evolution for persisted data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the persisted state of one evolution run.
type RunRecord struct {
	VersionedRecord
	ID             string                         `json:"id"`
	Problem        string                         `json:"problem"`
	Params         json.RawMessage                `json:"params,omitempty"`
	Arguments      optimization.Arguments         `json:"arguments"`
	Seed           int64                          `json:"seed"`
	Status         string                         `json:"status"`
	Generation     int                            `json:"generation"`
	BestFitness    float64                        `json:"best_fitness"`
	BestOrganism   json.RawMessage                `json:"best_organism,omitempty"`
	PopulationSize int                            `json:"population_size"`
	History        []optimization.GenerationStats `json:"history,omitempty"`
	Error          string                         `json:"error,omitempty"`
	CreatedAt      time.Time                      `json:"created_at"`
	UpdatedAt      time.Time                      `json:"updated_at"`
}

// Finished reports whether the run reached a terminal state.
func (r RunRecord) Finished() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Store defines persistence operations for runs. Get returns false when the
// run is unknown.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]RunRecord, error)
	Close() error
}
