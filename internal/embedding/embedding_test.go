package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 1}, []float64{-1, -1}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	h := NewHash(64)

	vectors, err := h.Embed(context.Background(), []string{"Paris is the capital of France.", "Paris is the capital of France."})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("Expected 2 vectors, got %d", len(vectors))
	}
	if len(vectors[0]) != 64 {
		t.Errorf("Expected dimension 64, got %d", len(vectors[0]))
	}
	if sim := Cosine(vectors[0], vectors[1]); math.Abs(sim-1) > 1e-9 {
		t.Errorf("Expected identical texts to have similarity 1, got %f", sim)
	}
}

func TestHash_DifferentTexts(t *testing.T) {
	h := NewHash(256)

	vectors, _ := h.Embed(context.Background(), []string{"golang concurrency patterns", "baking sourdough bread"})
	if sim := Cosine(vectors[0], vectors[1]); sim > 0.9 {
		t.Errorf("Expected unrelated texts to differ, got similarity %f", sim)
	}
}

func TestHash_BucketsInRange(t *testing.T) {
	h := NewHash(7)

	var text []byte
	for i := 0; i < 2000; i++ {
		text = fmt.Appendf(text, "word%d ", i)
	}

	vectors, err := h.Embed(context.Background(), []string{string(text)})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors[0]) != 7 {
		t.Fatalf("Expected dimension 7, got %d", len(vectors[0]))
	}

	var total float64
	for _, v := range vectors[0] {
		total += v
	}
	if total != 2000 {
		t.Errorf("Expected every word counted once, got %v", total)
	}
}

func TestOpenAI_Embed(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth, got %q", got)
		}
		calls++

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}

		// Answer in reverse order to check index alignment
		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(req.Input[i])), 1},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer server.Close()

	e := NewOpenAI("test-key", server.URL, "text-embedding-3-small", 2)

	texts := []string{"a", "bb", "ccc"}
	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if calls != 2 {
		t.Errorf("Expected 2 batched calls, got %d", calls)
	}
	for i, v := range vectors {
		if v[0] != float64(len(texts[i])) {
			t.Errorf("Vector %d misaligned: %v", i, v)
		}
	}
}

func TestOpenAI_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	e := NewOpenAI("test-key", server.URL, "nope", 0)
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("Expected error from failing endpoint")
	}
}
