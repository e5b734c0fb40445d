package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

func TestChat_Complete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message:         chatMessage{Role: "assistant", Content: `{"score":0.4,"explanation":"partial"}`},
			Done:            true,
			PromptEvalCount: 30,
			EvalCount:       8,
		})
	}))
	defer server.Close()

	chat := NewChat(&Config{BaseURL: server.URL + "/", Model: "llama3"})
	resp, err := chat.Complete(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "rate this"}},
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"score":0.4,"explanation":"partial"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.PromptTokens != 30 || resp.CompletionTokens != 8 {
		t.Errorf("usage = %+v", resp)
	}
	if got.Model != "llama3" || got.Stream || got.Format != "json" || len(got.Messages) != 1 {
		t.Errorf("request = %+v", got)
	}
	if chat.Name() != "ollama" {
		t.Errorf("Name() = %q", chat.Name())
	}
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "model missing",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"model 'llama3' not found"}`))
			},
			want: domain.ErrProviderUnavailable,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: domain.ErrProviderUnavailable,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			want: domain.ErrProviderResponse,
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			want: domain.ErrProviderResponse,
		},
		{
			name: "empty content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  "},"done":true}`))
			},
			want: domain.ErrProviderResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewChat(&Config{BaseURL: server.URL, Model: "llama3"}).
				Complete(context.Background(), domain.ChatRequest{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Input != "hello" || req.Model != "nomic-embed-text" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings:      [][]float32{{0.1, 0.2, 0.3}},
			PromptEvalCount: 2,
		})
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{BaseURL: server.URL, Model: "nomic-embed-text", Dimensions: 3})
	res, err := emb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(res.Embedding) != 3 || res.TotalTokens != 2 {
		t.Errorf("result = %+v", res)
	}
	if emb.Version().String() != "nomic-embed-text@3" {
		t.Errorf("Version() = %s", emb.Version())
	}
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1}}})
	}))
	defer server.Close()

	_, err := NewEmbedder(&Config{BaseURL: server.URL, Model: "m", Dimensions: 3}).
		Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrIndexVersionMismatch) {
		t.Fatalf("err = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	if err := NewChat(&Config{BaseURL: server.URL}).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
	server.Close()

	err := NewEmbedder(&Config{BaseURL: server.URL}).HealthCheck(context.Background())
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("HealthCheck after close = %v", err)
	}
}

func TestExtractError(t *testing.T) {
	if got := extractError([]byte(`{"error":"boom"}`)); got != "boom" {
		t.Errorf("extractError = %q", got)
	}
	if got := extractError([]byte(" plain \n")); got != "plain" {
		t.Errorf("extractError = %q", got)
	}
}
