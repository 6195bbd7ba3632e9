package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestOpenAIComplete(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Monsoon arrived early."}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.Client(), srv.URL, "test-model", "k3y")
	text, err := c.Complete(context.Background(), "Summarize the whole:  []")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if diff := cmp.Diff("Monsoon arrived early.", text); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
	want := chatRequest{Model: "test-model", Messages: []chatMessage{{Role: "user", Content: "Summarize the whole:  []"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("Bearer k3y", auth); diff != "" {
		t.Errorf("auth mismatch (-want +got):\n%s", diff)
	}
}

func TestAnthropicComplete(t *testing.T) {
	var got anthropicRequest
	var key, version string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Part one. "},{"type":"text","text":"Part two."}]}`))
	}))
	defer srv.Close()

	c := NewAnthropic(srv.Client(), srv.URL, "", "k3y", 0)
	text, err := c.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if diff := cmp.Diff("Part one. Part two.", text); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
	want := anthropicRequest{Model: DefaultAnthropicModel, MaxTokens: DefaultMaxTokens, Messages: []chatMessage{{Role: "user", Content: "prompt"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	if key != "k3y" || version != anthropicVersion {
		t.Errorf("unexpected headers: key=%q version=%q", key, version)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		handler func(w http.ResponseWriter, r *http.Request)
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `slow down`},
		{name: "api error object", status: http.StatusOK, body: `{"error":{"type":"invalid_request_error","message":"bad"}}`},
		{name: "empty response", status: http.StatusOK, body: `{"choices":[],"content":[]}`},
		{name: "invalid json", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(tt.body))
		}))

		clients := map[string]Client{
			"openai":    NewOpenAI(srv.Client(), srv.URL, "m", "k"),
			"anthropic": NewAnthropic(srv.Client(), srv.URL, "m", "k", 10),
		}
		for name, c := range clients {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				if _, err := c.Complete(context.Background(), "p"); err == nil {
					t.Fatal("expected error, got nil")
				}
			})
		}
		srv.Close()
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewOpenAI(srv.Client(), srv.URL, "m", "k").Complete(ctx, "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
		wantErr  bool
	}{
		{provider: "", wantType: "*llm.OpenAI"},
		{provider: "openai", wantType: "*llm.OpenAI"},
		{provider: "Anthropic", wantType: "*llm.Anthropic"},
		{provider: "gemini", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			c, err := New(Config{Provider: tt.provider})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch c.(type) {
			case *OpenAI:
				if tt.wantType != "*llm.OpenAI" {
					t.Errorf("got *OpenAI, want %s", tt.wantType)
				}
			case *Anthropic:
				if tt.wantType != "*llm.Anthropic" {
					t.Errorf("got *Anthropic, want %s", tt.wantType)
				}
			}
		})
	}
}
