package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/docfill/internal/api"
)

func uploaded(t *testing.T) Context {
	t.Helper()
	c, msgs, err := ApplyUpload(New(), &api.UploadResponse{
		SessionID:          "s1",
		CurrentPlaceholder: "p1",
		FirstQuestion:      "Q1?",
		Progress:           "1/5",
		TotalPlaceholders:  5,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	return c
}

func TestNewContextDisablesInput(t *testing.T) {
	c := New()
	assert.False(t, c.Ready())
	assert.False(t, c.InputEnabled())
	assert.Equal(t, PhaseUpload, c.Phase)

	_, err := BeginSend(c)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestApplyUpload(t *testing.T) {
	c := uploaded(t)
	assert.Equal(t, "s1", c.SessionID)
	assert.Equal(t, "p1", c.CurrentPlaceholder)
	assert.Equal(t, PhaseChat, c.Phase)
	assert.True(t, c.InputEnabled())
	assert.Equal(t, Progress{Current: 1, Total: 5}, c.Progress)
	assert.Equal(t, 20.0, c.Progress.Percent())
}

func TestApplyUploadLegacyProgress(t *testing.T) {
	c, msgs, err := ApplyUpload(New(), &api.UploadResponse{
		SessionID:         "s1",
		FirstQuestion:     "Q1?",
		TotalPlaceholders: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "1/4", c.Progress.String())
	assert.Equal(t, []Message{{Text: "Q1?", Sender: SenderAssistant, At: msgs[0].At}}, msgs)
}

func TestApplyUploadFailureKeepsState(t *testing.T) {
	before := New()
	after, msgs, err := ApplyUpload(before, &api.UploadResponse{SessionID: "s1", Progress: "one/five"})
	require.Error(t, err)
	assert.Nil(t, msgs)
	assert.Equal(t, before, after)

	after, _, err = ApplyUpload(before, &api.UploadResponse{})
	require.Error(t, err)
	assert.False(t, after.Ready())
}

func TestApplyChatValidationError(t *testing.T) {
	c := uploaded(t)
	inFlight, err := BeginSend(c)
	require.NoError(t, err)
	assert.Equal(t, StateAdvancing, inFlight.State)
	assert.False(t, inFlight.InputEnabled())

	next, effect, msgs, err := ApplyChat(inFlight, &api.ChatResponse{
		Type:               api.TypeValidationError,
		Message:            "Please enter a valid email",
		CurrentPlaceholder: "ignored",
		Progress:           "3/5",
	})
	require.NoError(t, err)
	assert.Equal(t, EffectNone, effect)
	assert.Equal(t, StateValidationFailed, next.State)
	assert.Equal(t, "p1", next.CurrentPlaceholder)
	assert.Equal(t, c.Progress, next.Progress)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Please enter a valid email", msgs[0].Text)
	assert.Equal(t, SenderAssistant, msgs[0].Sender)

	// retry goes back through the same cycle
	assert.True(t, next.InputEnabled())
	retry, err := BeginSend(next)
	require.NoError(t, err)
	assert.Equal(t, StateAdvancing, retry.State)
}

func TestApplyChatScenario(t *testing.T) {
	c := uploaded(t)
	assert.Equal(t, "1/5", c.Progress.String())

	c, _ = mustBegin(t, c)
	c, effect, msgs, err := ApplyChat(c, &api.ChatResponse{
		Type:               api.TypeNextQuestion,
		CurrentPlaceholder: "p2",
		Question:           "Q2?",
		Progress:           "2/5",
	})
	require.NoError(t, err)
	assert.Equal(t, EffectNone, effect)
	assert.Equal(t, "p2", c.CurrentPlaceholder)
	assert.Equal(t, "2/5", c.Progress.String())
	assert.Equal(t, 40.0, c.Progress.Percent())
	require.Len(t, msgs, 1)
	assert.Equal(t, "Q2?", msgs[0].Text)

	c, _ = mustBegin(t, c)
	c, effect, msgs, err = ApplyChat(c, &api.ChatResponse{Type: api.TypeComplete, Message: "Done"})
	require.NoError(t, err)
	assert.Equal(t, EffectGeneratePreview, effect)
	assert.Equal(t, StateComplete, c.State)
	assert.Equal(t, "Done", msgs[0].Text)
	assert.False(t, c.InputEnabled())

	_, err = BeginSend(c)
	assert.ErrorIs(t, err, ErrNotAccepting)
}

func TestApplyChatRejectsBadReplies(t *testing.T) {
	c, _ := mustBegin(t, uploaded(t))

	next, _, msgs, err := ApplyChat(c, &api.ChatResponse{Type: api.TypeNextQuestion, CurrentPlaceholder: "p2", Progress: "2-5"})
	require.Error(t, err)
	assert.Nil(t, msgs)
	assert.Equal(t, c, next)

	next, _, _, err = ApplyChat(c, &api.ChatResponse{Type: "other"})
	require.Error(t, err)
	assert.Equal(t, "p1", next.CurrentPlaceholder)
}

func TestApplyChatNextQuestionWithoutProgress(t *testing.T) {
	c, _ := mustBegin(t, uploaded(t))
	next, _, _, err := ApplyChat(c, &api.ChatResponse{Type: api.TypeNextQuestion, CurrentPlaceholder: "p2", Question: "Q2?"})
	require.NoError(t, err)
	assert.Equal(t, "p2", next.CurrentPlaceholder)
	assert.Equal(t, c.Progress, next.Progress)
}

func TestApplyPreviewReplacesValues(t *testing.T) {
	c := uploaded(t)
	c.CollectedValues["stale"] = "x"

	values := map[string]string{"city": "NYC"}
	next := ApplyPreview(c, &api.GenerateResponse{CollectedValues: values, PreviewHTML: "<p>NYC</p>", Filename: "completed_a.docx"})
	assert.Equal(t, map[string]string{"city": "NYC"}, next.CollectedValues)
	assert.Equal(t, PhasePreview, next.Phase)
	assert.Equal(t, "<p>NYC</p>", next.PreviewHTML)
	assert.Equal(t, "completed_a.docx", next.Filename)

	// the snapshot is copied, not aliased
	values["city"] = "LA"
	assert.Equal(t, "NYC", next.CollectedValues["city"])
	assert.Equal(t, "x", c.CollectedValues["stale"])
}

func TestApplyUpdate(t *testing.T) {
	c := ApplyPreview(uploaded(t), &api.GenerateResponse{CollectedValues: map[string]string{"city": "NYC"}})
	c.Editing = true

	local := map[string]string{"city": "Boston"}
	withServer := ApplyUpdate(c, &api.UpdateResponse{PreviewHTML: "<p>LA</p>", CollectedValues: map[string]string{"city": "LA"}}, local)
	assert.Equal(t, "LA", withServer.CollectedValues["city"])
	assert.Equal(t, "<p>LA</p>", withServer.PreviewHTML)
	assert.False(t, withServer.Editing)

	fallback := ApplyUpdate(c, &api.UpdateResponse{PreviewHTML: "<p>Boston</p>"}, local)
	assert.Equal(t, map[string]string{"city": "Boston"}, fallback.CollectedValues)
	assert.Equal(t, "NYC", c.CollectedValues["city"])
}

func mustBegin(t *testing.T, c Context) (Context, error) {
	t.Helper()
	next, err := BeginSend(c)
	require.NoError(t, err)
	return next, err
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		token   string
		total   int
		want    Progress
		wantErr bool
	}{
		{"1/5", 0, Progress{1, 5}, false},
		{" 3 / 7 ", 0, Progress{3, 7}, false},
		{"", 5, Progress{1, 5}, false},
		{"", 0, Progress{1, 0}, false},
		{"6/5", 0, Progress{6, 5}, false},
		{"5", 0, Progress{}, true},
		{"a/5", 0, Progress{}, true},
		{"1/b", 0, Progress{}, true},
	}
	for _, tt := range tests {
		got, err := ParseProgress(tt.token, tt.total)
		if tt.wantErr {
			assert.Error(t, err, tt.token)
			continue
		}
		require.NoError(t, err, tt.token)
		assert.Equal(t, tt.want, got, tt.token)
	}
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0.0, Progress{1, 0}.Percent())
	assert.Equal(t, 0.0, Progress{1, 0}.Fraction())
	assert.Equal(t, 120.0, Progress{6, 5}.Percent())
	assert.Equal(t, 1.0, Progress{6, 5}.Fraction())
	assert.Equal(t, 0.2, Progress{1, 5}.Fraction())
}
