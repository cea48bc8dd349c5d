package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/taxaformer/internal/model"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
			t.Errorf("Expected JSON response format, got %+v", req.ResponseFormat)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "ACGT") {
			t.Errorf("Prompt does not carry the sequence: %+v", req.Messages)
		}

		resp := openai.ChatCompletionResponse{
			ID:     "chatcmpl-123",
			Object: "chat.completion",
			Model:  "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Index:        0,
					Message:      openai.ChatCompletionMessage{Role: "assistant", Content: content},
					FinishReason: "stop",
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIClassifier_Classify_Success(t *testing.T) {
	server := chatServer(t, `{"lineage":"Eukaryota;Fungi","confidence":0.82,"overlap":91,"novelty_score":0.12}`)
	defer server.Close()

	c, err := NewOpenAIClassifier(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create classifier: %v", err)
	}

	got, err := c.Classify(context.Background(), model.SequenceRecord{ID: "s1", Sequence: "ACGT"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	want := model.Classification{Lineage: "Eukaryota;Fungi", Confidence: 0.82, OverlapPercent: 91, NoveltyScore: 0.12}
	if got != want {
		t.Errorf("Classify = %+v, want %+v", got, want)
	}
}

func TestOpenAIClassifier_Classify_FencedReply(t *testing.T) {
	server := chatServer(t, "```json\n{\"lineage\":\"Bacteria\",\"confidence\":0.9,\"overlap\":80,\"novelty_score\":0.3}\n```")
	defer server.Close()

	c, _ := NewOpenAIClassifier(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	got, err := c.Classify(context.Background(), model.SequenceRecord{ID: "s1", Sequence: "ACGT"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Lineage != "Bacteria" || got.NoveltyScore != 0.3 {
		t.Errorf("Unexpected classification: %+v", got)
	}
}

func TestOpenAIClassifier_Classify_Unparseable(t *testing.T) {
	server := chatServer(t, "I think this is a fungus.")
	defer server.Close()

	c, _ := NewOpenAIClassifier(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if _, err := c.Classify(context.Background(), model.SequenceRecord{ID: "s1", Sequence: "ACGT"}); err == nil {
		t.Fatal("Expected parse error")
	}
}

func TestOpenAIClassifier_Classify_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	c, _ := NewOpenAIClassifier(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if _, err := c.Classify(context.Background(), model.SequenceRecord{ID: "s1", Sequence: "ACGT"}); err == nil {
		t.Fatal("Expected API error")
	}
}

func TestNewOpenAIClassifier_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClassifier(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestParseClassification_MissingLineage(t *testing.T) {
	if _, err := parseClassification(`{"confidence":0.5}`); err == nil {
		t.Error("Expected error for reply without lineage")
	}
}
