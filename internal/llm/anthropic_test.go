package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicStub serves a fixed Messages API reply and captures the decoded
// request body.
func anthropicStub(t *testing.T, status int, header http.Header, reply any) (*AnthropicProvider, *map[string]any) {
	t.Helper()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		for k, vs := range header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", Model: "claude-haiku"},
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	return p, &got
}

func anthropicMessage(text, stop string) map[string]any {
	return map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": stop,
		"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
	}
}

func anthropicFailure(kind string) map[string]any {
	return map[string]any{"type": "error", "error": map[string]any{"type": kind, "message": kind}}
}

func coachRequest() Request {
	return Request{
		System:    "You are the voice of a friendly game avatar.",
		Messages:  []Message{{Role: RoleUser, Content: "The child answered correctly."}},
		MaxTokens: 256,
	}
}

func TestAnthropicProvider_Generate(t *testing.T) {
	p, sent := anthropicStub(t, http.StatusOK, nil,
		anthropicMessage("```json\n{\"line\":\"You got it!\",\"confidence\":0.8}\n```", "end_turn"))

	req := coachRequest()
	req.Schema = coachSchema()
	ctx := WithSession(context.Background(), "sess-7")

	resp, err := p.Generate(ctx, req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(resp.Content) != `{"line":"You got it!","confidence":0.8}` {
		t.Errorf("Content = %s, want the unfenced object", resp.Content)
	}
	if resp.Usage.TotalTokens != 80 || resp.StopReason != "end" {
		t.Errorf("usage/stop = %+v / %q", resp.Usage, resp.StopReason)
	}

	body := *sent
	if body["model"] != "claude-haiku-4-5-20251001" {
		t.Errorf("model = %v, want the resolved ID", body["model"])
	}
	meta, _ := body["metadata"].(map[string]any)
	if meta["user_id"] != "sess-7" {
		t.Errorf("metadata = %v, want the session id as user_id", body["metadata"])
	}
	if _, ok := body["system"]; !ok {
		t.Error("system prompt not sent")
	}
}

func TestAnthropicProvider_NoSessionNoMetadata(t *testing.T) {
	p, sent := anthropicStub(t, http.StatusOK, nil, anthropicMessage("plain", "end_turn"))
	if _, err := p.Generate(context.Background(), coachRequest()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, ok := (*sent)["metadata"]; ok {
		t.Errorf("metadata sent without a session: %v", (*sent)["metadata"])
	}
}

func TestAnthropicProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		reply  any
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			header: http.Header{"Retry-After": {"3"}},
			reply:  anthropicFailure("rate_limit_error"),
			check: func(t *testing.T, err error) {
				var rl *ErrRateLimit
				if !errors.As(err, &rl) {
					t.Fatalf("got %T (%v), want ErrRateLimit", err, err)
				}
				if rl.RetryAfter != 3*time.Second {
					t.Errorf("RetryAfter = %s, want 3s", rl.RetryAfter)
				}
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			reply:  anthropicFailure("api_error"),
			check: func(t *testing.T, err error) {
				var unavail *ErrProviderUnavailable
				if !errors.As(err, &unavail) {
					t.Fatalf("got %T (%v), want ErrProviderUnavailable", err, err)
				}
			},
		},
		{
			name:   "truncated",
			status: http.StatusOK,
			reply:  anthropicMessage(`{"line":"You go`, "max_tokens"),
			check: func(t *testing.T, err error) {
				var maxTok *ErrMaxTokensExceeded
				if !errors.As(err, &maxTok) {
					t.Fatalf("got %T (%v), want ErrMaxTokensExceeded", err, err)
				}
			},
		},
		{
			name:   "schema mismatch",
			status: http.StatusOK,
			reply:  anthropicMessage(`{"tone":"warm"}`, "end_turn"),
			check: func(t *testing.T, err error) {
				var inv *ErrInvalidResponse
				if !errors.As(err, &inv) || inv.Schema != "test-coach" {
					t.Fatalf("got %T (%v), want ErrInvalidResponse for test-coach", err, err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := anthropicStub(t, tt.status, tt.header, tt.reply)
			req := coachRequest()
			req.Schema = coachSchema()
			_, err := p.Generate(context.Background(), req)
			if err == nil {
				t.Fatal("expected an error")
			}
			tt.check(t, err)
		})
	}
}

func TestNewAnthropicProvider_RequiresKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{Model: "claude-haiku"}); err == nil {
		t.Fatal("expected an error without an API key")
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		models map[string]string
		in     string
		want   string
	}{
		{anthropicModels, "claude-sonnet", "claude-sonnet-4-20250514"},
		{anthropicModels, "claude-haiku", "claude-haiku-4-5-20251001"},
		{anthropicModels, "claude-opus-4-1", "claude-opus-4-1"},
		{nil, "anything", "anything"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.in, tt.models); got != tt.want {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
