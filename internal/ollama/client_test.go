package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(url string) *Client {
	return NewClient(Config{
		URL:              url,
		Model:            "llama3",
		GenerateTimeout:  5 * time.Second,
		SummarizeTimeout: 2 * time.Second,
		Generate:         Options{Temperature: 0.65, TopP: 0.7, MaxTokens: 900, RepeatPenalty: 1.2},
		Summarize:        Options{Temperature: 0.1, MaxTokens: 250},
	})
}

func TestGenerateConcatenatesStreamedChunks(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		lines := []string{
			`{"message":{"content":"Дыши "},"done":false}`,
			`not-json`,
			`{"message":{"content":"медленно 🌼"},"done":false}`,
			`{"message":{"content":""},"done":true}`,
			`{"message":{"content":"после done"},"done":false}`,
		}
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	text, outcome := c.Generate(context.Background(), GenerateRequest{
		Summary:  "пользователь тревожится",
		History:  []Exchange{{UserText: "привет", BotText: "привет 🤗"}},
		UserText: "мне тревожно",
	})

	if outcome != OutcomeOK {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeOK)
	}
	if text != "Дыши медленно 🌼" {
		t.Fatalf("text = %q, want %q", text, "Дыши медленно 🌼")
	}

	if !gotReq.Stream {
		t.Fatalf("generate request should set stream: true")
	}
	if gotReq.Options.Temperature != 0.65 || gotReq.Options.MaxTokens != 900 {
		t.Fatalf("options = %+v, want configured sampling", gotReq.Options)
	}
	if len(gotReq.Messages) != 4 {
		t.Fatalf("messages = %d, want system + pair + user", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || !strings.Contains(gotReq.Messages[0].Content, "пользователь тревожится") {
		t.Fatalf("system message should embed the rolling summary: %+v", gotReq.Messages[0])
	}
	if gotReq.Messages[3].Role != "user" || gotReq.Messages[3].Content != "мне тревожно" {
		t.Fatalf("last message = %+v, want the new user text", gotReq.Messages[3])
	}
}

func TestGenerateSanitizesOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"message":{"content":"<|im_start|>assistant Держись 🌟<|im_end|>"},"done":false}` + "\n"))
		w.Write([]byte(`{"done":true}` + "\n"))
	}))
	defer srv.Close()

	text, outcome := testClient(srv.URL).Generate(context.Background(), GenerateRequest{UserText: "привет"})
	if outcome != OutcomeOK {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeOK)
	}
	if text != "Держись 🌟" {
		t.Fatalf("text = %q, want sanitized reply", text)
	}
}

func TestGenerateEmptyResultReturnsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"message":{"content":"  <|im_end|>  "},"done":false}` + "\n"))
		w.Write([]byte(`{"done":true}` + "\n"))
	}))
	defer srv.Close()

	text, outcome := testClient(srv.URL).Generate(context.Background(), GenerateRequest{UserText: "привет"})
	if outcome != OutcomeEmpty {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeEmpty)
	}
	if text != ReplyNoAnswer {
		t.Fatalf("text = %q, want %q", text, ReplyNoAnswer)
	}
}

func TestGenerateBackendErrorReturnsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	text, outcome := testClient(srv.URL).Generate(context.Background(), GenerateRequest{UserText: "привет"})
	if outcome != OutcomeBackendError {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeBackendError)
	}
	if text != ReplyBackendError {
		t.Fatalf("text = %q, want %q", text, ReplyBackendError)
	}
}

func TestGenerateUnreachableBackendReturnsSentinel(t *testing.T) {
	c := testClient("http://127.0.0.1:1/api/chat")
	text, outcome := c.Generate(context.Background(), GenerateRequest{UserText: "привет"})
	if outcome != OutcomeBackendError {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeBackendError)
	}
	if text != ReplyBackendError {
		t.Fatalf("text = %q, want %q", text, ReplyBackendError)
	}
}

func TestGenerateCanceledContextReturnsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	text, outcome := testClient(srv.URL).Generate(ctx, GenerateRequest{UserText: "привет"})
	if outcome != OutcomeBackendError {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeBackendError)
	}
	if text != ReplyBackendError {
		t.Fatalf("text = %q, want %q", text, ReplyBackendError)
	}
}

func TestSummarizeStripsLabelEcho(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": "Сжатый контекст: пользователь тревожен, предложено дыхание"},
		})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).Summarize(context.Background(), "мне тревожно", "дыши медленно")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != "пользователь тревожен, предложено дыхание" {
		t.Fatalf("Summarize() = %q, want label stripped", got)
	}

	if gotReq.Stream {
		t.Fatalf("summarize request should set stream: false")
	}
	if gotReq.Options.Temperature != 0.1 || gotReq.Options.MaxTokens != 250 {
		t.Fatalf("options = %+v, want low-temperature summary settings", gotReq.Options)
	}
	if len(gotReq.Messages) != 1 || !strings.Contains(gotReq.Messages[0].Content, "мне тревожно") {
		t.Fatalf("summary prompt should embed the exchange: %+v", gotReq.Messages)
	}
}

func TestSummarizeErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Summarize(context.Background(), "a", "b"); err == nil {
		t.Fatalf("Summarize() expected error on HTTP 502")
	}
}
