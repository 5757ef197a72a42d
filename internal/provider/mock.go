package provider

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

const (
	MockName = "mock"

	mockJobPrefix = "mock_"

	MockStatusPending   = "MOCK_PENDING"
	MockStatusQueued    = "MOCK_QUEUED"
	MockStatusRendering = "MOCK_RENDERING"
	MockStatusDone      = "MOCK_DONE"
	MockStatusError     = "MOCK_ERROR"

	mockQueuedFor    = 10 * time.Second
	mockRenderingFor = 30 * time.Second
)

var mockFailureKeywords = []string{"fail", "error", "crash"}

// Mock is a local backend that progresses jobs by age: queued for the
// first 10s after submission, rendering until 30s, done afterwards. Prompts
// containing fail, error or crash always report an error.
type Mock struct {
	unhealthy atomic.Bool
	now       func() time.Time
}

func NewMock() *Mock {
	return &Mock{now: time.Now}
}

func (m *Mock) Name() string {
	return MockName
}

// SetHealthy toggles the simulated availability of the backend.
func (m *Mock) SetHealthy(healthy bool) {
	m.unhealthy.Store(!healthy)
}

func (m *Mock) SubmitJob(ctx context.Context, g *model.Generation) (*SubmitResult, error) {
	if m.unhealthy.Load() {
		return nil, newError(MockName, "", "mock provider is not healthy", nil)
	}

	return &SubmitResult{
		Provider: MockName,
		JobID:    mockJobPrefix + uuid.NewString(),
		Metadata: model.Metadata{
			"prompt_length": len(g.Prompt),
			"submitted_at":  m.now().Format(time.RFC3339),
		},
	}, nil
}

func (m *Mock) GetJobStatus(ctx context.Context, g *model.Generation) (string, error) {
	if !g.HasExternalJob() || !strings.HasPrefix(*g.ExternalJobID, mockJobPrefix) {
		jobID := ""
		if g.ExternalJobID != nil {
			jobID = *g.ExternalJobID
		}
		return "", newError(MockName, jobID, "invalid mock job id", ErrInvalidJob)
	}

	if mockShouldFail(g.Prompt) {
		return MockStatusError, nil
	}

	if g.ExternalSubmittedAt == nil {
		return MockStatusPending, nil
	}

	age := m.now().Sub(*g.ExternalSubmittedAt)
	switch {
	case age < mockQueuedFor:
		return MockStatusQueued, nil
	case age < mockRenderingFor:
		return MockStatusRendering, nil
	default:
		return MockStatusDone, nil
	}
}

func (m *Mock) NormalizeStatus(raw string) model.GenerationState {
	switch raw {
	case MockStatusPending, MockStatusQueued:
		return model.StateSubmitted
	case MockStatusRendering:
		return model.StateProcessing
	case MockStatusDone:
		return model.StateCompleted
	case MockStatusError:
		return model.StateFailed
	default:
		return model.StateSubmitted
	}
}

func (m *Mock) GetJobResult(ctx context.Context, jobID string) (*JobResult, error) {
	return &JobResult{
		VideoURL: "https://mock-s3-bucket.com/videos/" + jobID + ".mp4",
		Metadata: model.Metadata{
			"duration":   30,
			"resolution": "1920x1080",
			"format":     "mp4",
			"file_size":  2048576,
		},
	}, nil
}

func (m *Mock) CancelJob(ctx context.Context, jobID string) (bool, error) {
	return strings.HasPrefix(jobID, mockJobPrefix), nil
}

func (m *Mock) IsHealthy(ctx context.Context) bool {
	return !m.unhealthy.Load()
}

func mockShouldFail(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, keyword := range mockFailureKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
