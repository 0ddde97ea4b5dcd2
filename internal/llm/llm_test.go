package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/autograder/internal/llm/prompts"
)

func newFakeServer(t *testing.T, reply string, got *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/models"):
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"test-model","object":"model"}]}`))
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			if got != nil {
				if err := json.NewDecoder(r.Body).Decode(got); err != nil {
					t.Errorf("decode request: %v", err)
				}
			}
			resp := openai.ChatCompletionResponse{
				ID:     "cmpl-1",
				Object: "chat.completion",
				Choices: []openai.ChatCompletionChoice{{
					Index:        0,
					Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
					FinishReason: openai.FinishReasonStop,
				}},
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectAnswers(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := newFakeServer(t, "  {\"1\":\"a\",\"2\":\"v\"}\n", &req)

	c, err := New(srv.URL+"/v1", "key", "test-model", WithPromptVariant(prompts.PromptEnglish))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw, err := c.DetectAnswers(context.Background(), "1. Capital of France?  a) Paris X  b) Rome")
	if err != nil {
		t.Fatalf("DetectAnswers: %v", err)
	}
	if raw != `{"1":"a","2":"v"}` {
		t.Errorf("raw = %q", raw)
	}

	if req.Model != "test-model" {
		t.Errorf("model = %q, want test-model", req.Model)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Error("expected JSON object response format")
	}
	if req.MaxTokens != detectMaxTokens {
		t.Errorf("max tokens = %d, want %d", req.MaxTokens, detectMaxTokens)
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Capital of France") {
		t.Error("prompt should contain the document text")
	}
}

func TestPing(t *testing.T) {
	srv := newFakeServer(t, "{}", nil)
	c, err := New(srv.URL+"/v1", "key", "test-model")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNewInvalidVariant(t *testing.T) {
	if _, err := New("", "key", "m", WithPromptVariant("fr")); err == nil {
		t.Error("expected error for unknown prompt variant")
	}
}

func TestRateLimitedClientHonorsContext(t *testing.T) {
	srv := newFakeServer(t, "{}", nil)
	c, err := New(srv.URL+"/v1", "key", "test-model", WithRateLimit(0.001, 1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// The first call consumes the burst; the second must wait far longer
	// than the context allows.
	if _, err := c.DetectAnswers(context.Background(), "text"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.DetectAnswers(ctx, "text"); err == nil {
		t.Error("expected rate limit error with cancelled context")
	}
}
