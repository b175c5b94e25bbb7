// Package runstore keeps a history of pipeline runs.
package runstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/pipeline"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID         string           `json:"id"`
	Dataset    string           `json:"dataset"`
	Status     string           `json:"status"`
	Stage      string           `json:"stage,omitempty"`
	Code       string           `json:"code,omitempty"`
	Error      string           `json:"error,omitempty"`
	Charts     []string         `json:"charts,omitempty"`
	Transcript []pipeline.Entry `json:"transcript,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Store persists runs.
type Store interface {
	Record(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, filter Filter) ([]Run, error)
}

// Filter limits List queries. Results are newest first.
type Filter struct {
	Status string
	Limit  int
}

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = stderrors.New("run not found")

// FromResult records a completed run.
func FromResult(result *pipeline.Result) Run {
	return Run{
		ID:         result.Run.ID,
		Dataset:    result.Run.Dataset,
		Status:     StatusCompleted,
		Charts:     result.Visualizer.FigurePaths(),
		Transcript: result.Transcript,
		StartedAt:  result.Run.StartedAt,
		FinishedAt: result.Run.FinishedAt,
	}
}

// FromError records a failed run. Failures raised before the first stage
// carry no run id and no stage.
func FromError(dataset string, startedAt time.Time, err error) Run {
	run := Run{
		Dataset:    dataset,
		Status:     StatusFailed,
		Code:       string(errors.CodeOf(err)),
		Error:      err.Error(),
		StartedAt:  startedAt.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	var stageErr *pipeline.StageError
	if stderrors.As(err, &stageErr) {
		run.ID = stageErr.RunID
		run.Stage = stageErr.Stage.String()
		run.Transcript = stageErr.Transcript
	}
	return run
}

func withID(run Run) (Run, error) {
	if run.Status == "" {
		return run, stderrors.New("run status is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return run, nil
}

func encodeTranscript(transcript []pipeline.Entry) ([]byte, error) {
	if len(transcript) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(transcript)
}

func decodeTranscript(raw string) ([]pipeline.Entry, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []pipeline.Entry
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ Store = (*SQLiteStore)(nil)
