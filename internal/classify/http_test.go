package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/taxaformer/internal/model"
)

func TestHTTPClassifier_Classify_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("Expected path /classify, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ID != "seq1" || req.Sequence != "ACGT" {
			t.Errorf("Unexpected request: %+v", req)
		}

		_, _ = w.Write([]byte(`{"lineage":"Eukaryota;SAR;Alveolata","confidence":0.91,"overlap":88,"novelty_score":0.07}`))
	}))
	defer server.Close()

	c, err := NewHTTPClassifier(Config{BaseURL: server.URL + "/", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create classifier: %v", err)
	}

	got, err := c.Classify(context.Background(), model.SequenceRecord{ID: "seq1", Sequence: "ACGT"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	want := model.Classification{Lineage: "Eukaryota;SAR;Alveolata", Confidence: 0.91, OverlapPercent: 88, NoveltyScore: 0.07}
	if got != want {
		t.Errorf("Classify = %+v, want %+v", got, want)
	}
}

func TestHTTPClassifier_Classify_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model not loaded"}`))
	}))
	defer server.Close()

	c, _ := NewHTTPClassifier(Config{BaseURL: server.URL, Timeout: 5})
	_, err := c.Classify(context.Background(), model.SequenceRecord{ID: "a", Sequence: "AC"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "model not loaded") || !strings.Contains(err.Error(), "500") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestHTTPClassifier_Classify_PlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, _ := NewHTTPClassifier(Config{BaseURL: server.URL, Timeout: 5})
	_, err := c.Classify(context.Background(), model.SequenceRecord{ID: "a", Sequence: "AC"})
	if err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestHTTPClassifier_Classify_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c, _ := NewHTTPClassifier(Config{BaseURL: server.URL, Timeout: 5})
	if _, err := c.Classify(context.Background(), model.SequenceRecord{ID: "a", Sequence: "AC"}); err == nil {
		t.Fatal("Expected unmarshal error")
	}
}

func TestHTTPClassifier_Classify_MissingLineage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"confidence":0.9,"overlap":80,"novelty_score":0.05}`))
	}))
	defer server.Close()

	c, _ := NewHTTPClassifier(Config{BaseURL: server.URL, Timeout: 5})
	_, err := c.Classify(context.Background(), model.SequenceRecord{ID: "a", Sequence: "AC"})
	if err == nil || !strings.Contains(err.Error(), "no lineage") {
		t.Fatalf("Expected missing lineage error, got %v", err)
	}
}

func TestHTTPClassifier_SendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"lineage":"Bacteria","confidence":0.8,"overlap":70,"novelty_score":0.1}`))
	}))
	defer server.Close()

	c, _ := NewHTTPClassifier(Config{BaseURL: server.URL, APIKey: "secret"})
	if _, err := c.Classify(context.Background(), model.SequenceRecord{ID: "a", Sequence: "AC"}); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
}

func TestHTTPClassifier_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, _ := NewHTTPClassifier(Config{BaseURL: server.URL})
	if !c.IsAvailable(context.Background()) {
		t.Error("Expected IsAvailable to return true")
	}

	server.Close()
	if c.IsAvailable(context.Background()) {
		t.Error("Expected IsAvailable to return false after shutdown")
	}
}

func TestNewHTTPClassifier_RequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPClassifier(Config{}); err == nil {
		t.Error("Expected error without base URL")
	}
}
