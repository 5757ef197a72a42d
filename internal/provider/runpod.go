package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

const (
	RunPodName = "runpod"

	RunPodStatusInQueue    = "IN_QUEUE"
	RunPodStatusInProgress = "IN_PROGRESS"
	RunPodStatusCompleted  = "COMPLETED"
	RunPodStatusFailed     = "FAILED"
	RunPodStatusCancelled  = "CANCELLED"
	RunPodStatusTimedOut   = "TIMED_OUT"
)

// RunPod talks to a RunPod serverless endpoint.
type RunPod struct {
	baseURL    string
	apiKey     string
	endpointID string
	client     *http.Client
}

type runPodJob struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Output        map[string]any `json:"output,omitempty"`
	Error         string         `json:"error,omitempty"`
	DelayTime     int64          `json:"delayTime,omitempty"`
	ExecutionTime int64          `json:"executionTime,omitempty"`
}

type runPodHealth struct {
	Workers struct {
		Idle      int `json:"idle"`
		Running   int `json:"running"`
		Unhealthy int `json:"unhealthy"`
	} `json:"workers"`
}

// available reports whether any worker can take a job. An endpoint scaled to
// zero has no workers at all and is still considered available.
func (h runPodHealth) available() bool {
	w := h.Workers
	if w.Idle+w.Running+w.Unhealthy == 0 {
		return true
	}
	return w.Idle+w.Running > 0
}

func NewRunPod(baseURL, apiKey, endpointID string, timeout time.Duration) *RunPod {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RunPod{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		endpointID: endpointID,
		client:     &http.Client{Timeout: timeout},
	}
}

func (r *RunPod) Name() string {
	return RunPodName
}

func (r *RunPod) SubmitJob(ctx context.Context, g *model.Generation) (*SubmitResult, error) {
	if r.apiKey == "" {
		return nil, newError(RunPodName, "", "API key not configured", nil)
	}

	payload := map[string]any{
		"input": map[string]any{
			"prompt":        g.Prompt,
			"generation_id": g.ID.String(),
		},
	}

	var job runPodJob
	if err := r.do(ctx, http.MethodPost, "/run", payload, &job); err != nil {
		return nil, newError(RunPodName, "", "submit failed", err)
	}
	if job.ID == "" {
		return nil, newError(RunPodName, "", "submit returned no job id", nil)
	}

	return &SubmitResult{
		Provider: RunPodName,
		JobID:    job.ID,
		Metadata: model.Metadata{
			"endpoint_id":  r.endpointID,
			"status":       job.Status,
			"submitted_at": time.Now().Format(time.RFC3339),
		},
	}, nil
}

func (r *RunPod) GetJobStatus(ctx context.Context, g *model.Generation) (string, error) {
	if !g.HasExternalJob() {
		return "", newError(RunPodName, "", "missing RunPod job id", ErrInvalidJob)
	}
	jobID := *g.ExternalJobID

	job, err := r.status(ctx, jobID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

func (r *RunPod) NormalizeStatus(raw string) model.GenerationState {
	switch raw {
	case RunPodStatusInQueue, RunPodStatusInProgress:
		return model.StateProcessing
	case RunPodStatusCompleted:
		return model.StateCompleted
	case RunPodStatusFailed, RunPodStatusCancelled, RunPodStatusTimedOut:
		return model.StateFailed
	default:
		return model.StateSubmitted
	}
}

func (r *RunPod) GetJobResult(ctx context.Context, jobID string) (*JobResult, error) {
	job, err := r.status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != RunPodStatusCompleted {
		return nil, newError(RunPodName, jobID, "job is not completed: "+job.Status, nil)
	}

	videoURL, _ := job.Output["video_url"].(string)
	if videoURL == "" {
		return nil, newError(RunPodName, jobID, "job output has no video_url", nil)
	}

	metadata := model.Metadata{
		"delay_time_ms":     job.DelayTime,
		"execution_time_ms": job.ExecutionTime,
	}
	for k, v := range job.Output {
		if k != "video_url" {
			metadata[k] = v
		}
	}

	return &JobResult{VideoURL: videoURL, Metadata: metadata}, nil
}

func (r *RunPod) CancelJob(ctx context.Context, jobID string) (bool, error) {
	if jobID == "" {
		return false, newError(RunPodName, "", "missing RunPod job id", ErrInvalidJob)
	}

	var job runPodJob
	if err := r.do(ctx, http.MethodPost, "/cancel/"+jobID, nil, &job); err != nil {
		return false, newError(RunPodName, jobID, "cancel failed", err)
	}
	return job.Status == RunPodStatusCancelled, nil
}

func (r *RunPod) IsHealthy(ctx context.Context) bool {
	var health runPodHealth
	if err := r.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return false
	}
	return health.available()
}

func (r *RunPod) status(ctx context.Context, jobID string) (*runPodJob, error) {
	if jobID == "" {
		return nil, newError(RunPodName, "", "missing RunPod job id", ErrInvalidJob)
	}

	var job runPodJob
	if err := r.do(ctx, http.MethodGet, "/status/"+jobID, nil, &job); err != nil {
		return nil, newError(RunPodName, jobID, "status request failed", err)
	}
	if job.Status == "" {
		return nil, newError(RunPodName, jobID, "status response has no status", nil)
	}
	return &job, nil
}

func (r *RunPod) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+"/"+r.endpointID+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
