package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"exact multiple", "abcdefgh", 2},
		{"rounds up", "abcde", 2},
		{"single char", "a", 1},
		{"multibyte runes counted as chars", "日本語テ", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.input); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestCountTokens_TokensArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokenize" {
			t.Errorf("path = %q, want /tokenize", r.URL.Path)
		}
		w.Write([]byte(`{"tokens": [1, 5, 9]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL)
	got, err := client.CountTokens(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if got != 3 {
		t.Errorf("CountTokens() = %d, want 3", got)
	}
}

func TestCountTokens_CountField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count": 17}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL)
	got, err := client.CountTokens(context.Background(), "hello")
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if got != 17 {
		t.Errorf("CountTokens() = %d, want 17", got)
	}
}

func TestCountTokens_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL)
	if _, err := client.CountTokens(context.Background(), "hello"); err == nil {
		t.Error("CountTokens() expected error for malformed response")
	}
}

func TestCountTokens_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL)
	if _, err := client.CountTokens(context.Background(), "hello"); err == nil {
		t.Error("CountTokens() expected error for 429 response")
	}
}

func TestGenerate_ReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "  a summary  "}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL)
	got, err := client.Generate(context.Background(), "summarize", GenerateOptions{Temperature: 0.3})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "a summary" {
		t.Errorf("Generate() = %q, want trimmed content", got)
	}
}

func TestGenerate_EmptyContentIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "   "}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL)
	if _, err := client.Generate(context.Background(), "summarize", GenerateOptions{}); err == nil {
		t.Error("Generate() expected error for empty completion")
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL)
	if _, err := client.Generate(context.Background(), "summarize", GenerateOptions{}); err == nil {
		t.Error("Generate() expected error when no choices returned")
	}
}

func TestClient_RespectsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewOpenAIClient(srv.URL)
	if _, err := client.CountTokens(ctx, "hello"); err == nil {
		t.Error("CountTokens() expected error for cancelled context")
	}
}
