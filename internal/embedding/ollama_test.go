package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %s", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float64{0.1, 0.2, 0.3},
		})
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	emb, err := e.Embed(context.Background(), "ranger build")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != 3 || emb[1] != float32(0.2) {
		t.Errorf("unexpected embedding: %v", emb)
	}

	// Second call for the same text hits the cache.
	if _, err := e.Embed(context.Background(), "ranger build"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
}

func TestOllamaEmbedder_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error on non-200 status")
	}
}

func TestNewOllamaEmbedder_Validation(t *testing.T) {
	if _, err := NewOllamaEmbedder("", "", 3, 10); err == nil {
		t.Error("missing model must fail")
	}
	if _, err := NewOllamaEmbedder("", "m", 0, 10); err == nil {
		t.Error("non-positive dimensions must fail")
	}
}
