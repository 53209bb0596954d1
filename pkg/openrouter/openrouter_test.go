package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestNewClientWithoutKey(t *testing.T) {
	t.Parallel()

	if c := NewClient(Config{BaseURL: "https://example.com"}); c != nil {
		t.Fatalf("NewClient() = %v, want nil without api key", c)
	}
}

func TestSDKCompleterSendsMessages(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"test-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"What is your budget?"}}]}`)
	}))
	t.Cleanup(server.Close)

	maxTokens := 128
	cfg := Config{
		BaseURL:            server.URL,
		APIKey:             "key",
		Model:              "test-model",
		MaxCompletionToken: &maxTokens,
		Temperature:        0.2,
		SiteName:           "crm",
	}
	completer, err := NewSDKCompleter(NewClient(cfg), cfg)
	if err != nil {
		t.Fatalf("NewSDKCompleter() error = %v", err)
	}

	got, err := completer.Complete(context.Background(), []*schema.Message{
		schema.SystemMessage("persona"),
		schema.UserMessage("hi"),
		schema.AssistantMessage("hello", nil),
		schema.UserMessage("3bhk villa"),
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "What is your budget?" {
		t.Fatalf("Complete() = %q", got)
	}

	if gotBody["model"] != "test-model" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 4 {
		t.Fatalf("messages = %#v", gotBody["messages"])
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Fatalf("messages[0].role = %v, want system", first["role"])
	}
	if gotHeaders.Get("Authorization") != "Bearer key" {
		t.Fatalf("Authorization = %q", gotHeaders.Get("Authorization"))
	}
	if gotHeaders.Get("X-Title") != "crm" {
		t.Fatalf("X-Title = %q", gotHeaders.Get("X-Title"))
	}
}

func TestSDKCompleterEmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	t.Cleanup(server.Close)

	cfg := Config{BaseURL: server.URL, APIKey: "key", Model: "m"}
	completer, err := NewSDKCompleter(NewClient(cfg), cfg)
	if err != nil {
		t.Fatalf("NewSDKCompleter() error = %v", err)
	}
	if _, err := completer.Complete(context.Background(), []*schema.Message{schema.UserMessage("hi")}); !errors.Is(err, ErrEmptyChoices) {
		t.Fatalf("Complete() error = %v, want ErrEmptyChoices", err)
	}
}

func TestNewSDKCompleterRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewSDKCompleter(nil, Config{}); err == nil {
		t.Fatalf("NewSDKCompleter(nil) error = nil")
	}
}
