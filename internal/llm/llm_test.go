package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
)

func completionServer(t *testing.T, usage string, check func(body map[string]interface{})) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if check != nil {
			check(body)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Paris."}}]%s}`, usage)
	}))
}

func TestOpenAI_Complete(t *testing.T) {
	server := completionServer(t, `,"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}`, func(body map[string]interface{}) {
		if body["model"] != "test-model" {
			t.Errorf("Expected model test-model, got %v", body["model"])
		}
		if body["temperature"] != 0.5 {
			t.Errorf("Expected temperature 0.5, got %v", body["temperature"])
		}
		msgs, _ := body["messages"].([]interface{})
		if len(msgs) != 3 {
			t.Fatalf("Expected 3 messages, got %d", len(msgs))
		}
		roles := []string{"system", "user", "assistant"}
		for i, m := range msgs {
			if role := m.(map[string]interface{})["role"]; role != roles[i] {
				t.Errorf("Message %d: expected role %s, got %v", i, roles[i], role)
			}
		}
	})
	defer server.Close()

	creds := models.Credentials{APIKey: "k", BaseURL: server.URL, Model: "test-model"}
	messages := []models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "a"},
	}

	c, err := NewOpenAI(0).Complete(context.Background(), creds, messages, 0.5)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if c.Content != "Paris." {
		t.Errorf("Expected content 'Paris.', got %q", c.Content)
	}
	if c.Usage == nil || c.Usage.TotalTokens != 12 || c.Usage.PromptTokens != 10 {
		t.Errorf("Unexpected usage: %+v", c.Usage)
	}
}

func TestOpenAI_NoUsage(t *testing.T) {
	server := completionServer(t, "", nil)
	defer server.Close()

	creds := models.Credentials{APIKey: "k", BaseURL: server.URL, Model: "m"}
	c, err := NewOpenAI(0).Complete(context.Background(), creds, []models.Message{{Role: models.RoleUser, Content: "q"}}, 0)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if c.Usage != nil {
		t.Errorf("Expected nil usage, got %+v", c.Usage)
	}
}

func TestOpenAI_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	o := NewOpenAI(0)

	_, err := o.Complete(context.Background(), models.Credentials{APIKey: "bad", BaseURL: server.URL, Model: "m"}, nil, 0)
	if !errors.Is(err, ErrCompletion) {
		t.Errorf("Expected ErrCompletion, got %v", err)
	}

	_, err = o.Complete(context.Background(), models.Credentials{BaseURL: server.URL}, nil, 0)
	if !errors.Is(err, ErrCompletion) {
		t.Errorf("Expected ErrCompletion for missing credentials, got %v", err)
	}
}
