package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"finresearch/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, retries int) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient("test-key", url, "groq", 5*time.Second, retries)
	require.NoError(t, err)
	c.backoff = time.Millisecond
	return c
}

func TestOpenAIClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "openai/gpt-oss-120b",
			"choices": [{"message": {"content": "{\"subQuestions\":[]}"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/", 0)
	resp, err := c.Complete(context.Background(), Completion{
		Model:       "openai/gpt-oss-120b",
		Temperature: 0.2,
		Messages:    []ports.Message{{Role: ports.RoleUser, Content: "plan"}},
		JSON:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"subQuestions":[]}`, resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 17, resp.Usage.TotalTokens)
	assert.Equal(t, "groq", resp.Usage.Provider)
	assert.Equal(t, "openai/gpt-oss-120b", resp.Usage.Model)

	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, 0.2, got.Temperature)
}

func TestOpenAIClientRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL, 2).Complete(context.Background(), Completion{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Nil(t, resp.Usage)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Complete(context.Background(), Completion{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIClientValidation(t *testing.T) {
	_, err := NewOpenAIClient("", "", "openai", 0, 0)
	assert.Error(t, err)

	c, err := NewOpenAIClient("k", "", "openai", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", c.BaseURL)
	assert.Equal(t, 0, c.MaxRetries)

	_, err = c.Complete(context.Background(), Completion{})
	assert.Error(t, err)
}

type recordingCompleter struct {
	last Completion
}

func (r *recordingCompleter) Complete(_ context.Context, c Completion) (*ports.LLMResponse, error) {
	r.last = c
	return &ports.LLMResponse{Content: c.Model}, nil
}

func TestProfileRouterResolvesModels(t *testing.T) {
	rec := &recordingCompleter{}
	router := NewProfileRouter(rec,
		ProfileSettings{Model: "fast-model", Temperature: 0.1},
		ProfileSettings{Model: "smart-model", Temperature: 0.2, MaxTokens: 2048},
	)

	resp, err := router.Generate(context.Background(), ports.GenerateRequest{
		Profile:   ports.ProfileSmart,
		Operation: ports.OpPlan,
		JSON:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "smart-model", resp.Content)
	assert.Equal(t, 2048, rec.last.MaxTokens)
	assert.True(t, rec.last.JSON)

	_, err = router.Generate(context.Background(), ports.GenerateRequest{Profile: ports.ProfileFast})
	require.NoError(t, err)
	assert.Equal(t, "fast-model", rec.last.Model)
	assert.Equal(t, 0.1, rec.last.Temperature)
}

func TestToGeminiContents(t *testing.T) {
	contents, system := toGeminiContents([]ports.Message{
		{Role: ports.RoleSystem, Content: "be terse"},
		{Role: ports.RoleUser, Content: "hello"},
		{Role: "assistant", Content: "hi"},
	})
	assert.Equal(t, "be terse", system)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "hi", contents[1].Parts[0].Text)
}
