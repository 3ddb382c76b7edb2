package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaClient_Generate(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "Hello from Aria.", Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, nil)
	got, err := client.Generate(context.Background(), "llama3.2", "say hello", GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello from Aria." {
		t.Errorf("response = %q, want %q", got, "Hello from Aria.")
	}

	if gotReq.Model != "llama3.2" {
		t.Errorf("request model = %q, want llama3.2", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("expected stream to be false")
	}
	if gotReq.Options.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gotReq.Options.Temperature)
	}
	if gotReq.Options.NumPredict != 256 {
		t.Errorf("num_predict = %d, want 256", gotReq.Options.NumPredict)
	}
}

func TestOllamaClient_Generate_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'missing' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, nil)
	_, err := client.Generate(context.Background(), "missing", "hi", GenerateOptions{})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("error = %v, want ErrModelUnavailable", err)
	}
	if IsRetryable(err) {
		t.Error("model-not-found should not be retryable")
	}
}

func TestOllamaClient_Generate_Unreachable(t *testing.T) {
	client := NewOllamaClient("http://127.0.0.1:1", nil)
	_, err := client.Generate(context.Background(), "llama3.2", "hi", GenerateOptions{})
	if !errors.Is(err, ErrProviderUnreachable) {
		t.Errorf("error = %v, want ErrProviderUnreachable", err)
	}
	if !IsRetryable(err) {
		t.Error("unreachable server should be retryable")
	}
}

func TestOllamaClient_Embeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %q, want /api/embeddings", r.URL.Path)
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q, want nomic-embed-text", req.Model)
		}
		json.NewEncoder(w).Encode(embeddingsResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, nil)
	vec, err := client.Embeddings(context.Background(), "nomic-embed-text", "remember this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("embedding = %v, want [0.1 0.2 0.3]", vec)
	}
}

func TestOllamaClient_Embeddings_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingsResponse{})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, nil)
	_, err := client.Embeddings(context.Background(), "nomic-embed-text", "text")
	if !errors.Is(err, ErrProviderError) {
		t.Errorf("error = %v, want ErrProviderError", err)
	}
}

func TestOllamaClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, nil)
	models, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 || models[0] != "llama3.2:latest" {
		t.Errorf("models = %v", models)
	}
}

func TestOllamaClient_Health_Overloaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, nil)
	_, err := client.Health(context.Background())
	if !errors.Is(err, ErrProviderOverloaded) {
		t.Errorf("error = %v, want ErrProviderOverloaded", err)
	}
}
