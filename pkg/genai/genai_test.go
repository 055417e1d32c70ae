package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose", "Sure! Here it is: {\"a\":{\"b\":2}} hope that helps", `{"a":{"b":2}}`},
		{"no object", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Fatalf("ExtractJSON = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{Provider: "openai"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if _, err := New(Config{Provider: "cohere", APIKey: "k"}); err == nil {
		t.Fatal("expected unknown provider error")
	}
	g, err := New(Config{Provider: "gemini", APIKey: "k"})
	if err != nil || g == nil {
		t.Fatalf("gemini = %v, %v", g, err)
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g := NewOpenAI("sk-test", "test-model", srv.URL+"/v1", 5*time.Second)
	out, err := g.Generate(context.Background(), Request{System: "sys", Prompt: "hi", JSON: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("out = %q", out)
	}
	if got.Model != "test-model" || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hi" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestOpenAIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	if _, err := NewOpenAI("k", "", srv.URL+"/v1", time.Second).Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnthropicGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "ak" || r.Header.Get("anthropic-version") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"x\":"},{"type":"text","text":"1}"}]}`))
	}))
	defer srv.Close()

	out, err := NewAnthropic("ak", "", srv.URL, time.Second).Generate(context.Background(), Request{System: "be brief", Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"x":1}` {
		t.Fatalf("out = %q", out)
	}
	if body["system"] != "be brief" {
		t.Fatalf("system = %v", body["system"])
	}
}

func TestAnthropicStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewAnthropic("ak", "", srv.URL, time.Second).Generate(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Fatal("expected error")
	}
}

type scripted struct {
	calls int
	err   error
}

func (s *scripted) Generate(context.Context, Request) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "ok", nil
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	next := &scripted{err: errors.New("503")}
	b := NewBreaker(next, 2, time.Minute)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := b.Generate(ctx, Request{}); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("call %d err = %v", i, err)
		}
	}
	if _, err := b.Generate(ctx, Request{}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if next.calls != 2 {
		t.Fatalf("calls = %d, open breaker must not call through", next.calls)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := b.Generate(ctx, Request{}); err == nil || errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("failed probe err = %v", err)
	}
	if _, err := b.Generate(ctx, Request{}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("failed probe should reopen, err = %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	next.err = nil
	if out, err := b.Generate(ctx, Request{}); err != nil || out != "ok" {
		t.Fatalf("probe = %q, %v", out, err)
	}
	if _, err := b.Generate(ctx, Request{}); err != nil {
		t.Fatalf("closed breaker err = %v", err)
	}
}
