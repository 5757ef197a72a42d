// Package provider holds the video generation backends. Each backend speaks
// its own status vocabulary and maps it onto the normalized workflow states.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

// ErrInvalidJob is returned when a generation has no job id, or one the
// backend could not have issued.
var ErrInvalidJob = errors.New("invalid job id")

type Provider interface {
	// Name identifies the backend, it is stored on submitted generations.
	Name() string

	SubmitJob(ctx context.Context, g *model.Generation) (*SubmitResult, error)

	// GetJobStatus returns the raw backend status of the generation's job.
	GetJobStatus(ctx context.Context, g *model.Generation) (string, error)

	// NormalizeStatus maps a raw status onto submitted, processing, completed
	// or failed. Unknown statuses map to submitted.
	NormalizeStatus(raw string) model.GenerationState

	GetJobResult(ctx context.Context, jobID string) (*JobResult, error)
	CancelJob(ctx context.Context, jobID string) (bool, error)
	IsHealthy(ctx context.Context) bool
}

type SubmitResult struct {
	Provider string
	JobID    string
	Metadata model.Metadata
}

type JobResult struct {
	VideoURL string
	Metadata model.Metadata
}

// Error is the single error type backends return.
type Error struct {
	Provider string
	JobID    string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.JobID != "" {
		msg = fmt.Sprintf("%s (job %s)", msg, e.JobID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(provider, jobID, message string, err error) *Error {
	return &Error{Provider: provider, JobID: jobID, Message: message, Err: err}
}
