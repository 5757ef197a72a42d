package telegram

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

func strPtr(s string) *string { return &s }

func TestGenerationFinishedText(t *testing.T) {
	tests := []struct {
		name     string
		g        model.Generation
		ok       bool
		contains []string
	}{
		{
			name:     "completed",
			g:        model.Generation{State: model.StateCompleted, Prompt: "a cat <surfing>", VideoStorageURL: strPtr("https://cdn/v.mp4")},
			ok:       true,
			contains: []string{"ready", "a cat &lt;surfing&gt;", "https://cdn/v.mp4"},
		},
		{
			name:     "failed",
			g:        model.Generation{State: model.StateFailed, Prompt: "crash", ExternalErrorMessage: strPtr("Provider job failed")},
			ok:       true,
			contains: []string{"failed", "Provider job failed"},
		},
		{
			name:     "refunded",
			g:        model.Generation{State: model.StateRefunded, Prompt: "x", TokenCost: 1000},
			ok:       true,
			contains: []string{"1000 tokens refunded"},
		},
		{
			name: "still running",
			g:    model.Generation{State: model.StateProcessing, Prompt: "x"},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.g
			g.ID = uuid.New()

			text, ok := generationFinishedText(&g)
			assert.Equal(t, tt.ok, ok)
			for _, want := range tt.contains {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestRecentVideosText(t *testing.T) {
	assert.Equal(t, "🎞 You have no videos yet.", recentVideosText(nil))

	text := recentVideosText([]model.Generation{
		{State: model.StateCompleted, Prompt: "sunset", VideoStorageURL: strPtr("https://cdn/1.mp4")},
		{State: model.StateSubmitted, Prompt: "forest"},
	})
	assert.Contains(t, text, "✅ <i>sunset</i>")
	assert.Contains(t, text, "https://cdn/1.mp4")
	assert.Contains(t, text, "⏳ <i>forest</i>")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héllo…", truncate("héllo world", 5))
}

func TestHelpTextDoesNotPromiseAutomaticRefunds(t *testing.T) {
	assert.NotContains(t, helpText, "returned to your wallet")
	assert.Contains(t, helpText, "contact support")
	for _, command := range []string{"/start", "/balance", "/videos", "/help"} {
		assert.Contains(t, helpText, command)
	}
}
