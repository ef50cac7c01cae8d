package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Sentinel replies. Backend failures never surface as errors from Generate;
// a chat reply must always be produced, so the client degrades to these.
const (
	ReplyNoAnswer     = "🚫 Не получилось сформировать ответ"
	ReplyBackendError = "⚠️ Ошибка соединения с ИИ"
)

// Outcome classifies how a generation ended. The reply text is usable in
// every case; the outcome exists for metrics.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeEmpty        Outcome = "empty"
	OutcomeBackendError Outcome = "backend_error"
)

// Exchange is one prior user/assistant pair included in the prompt.
type Exchange struct {
	UserText string
	BotText  string
}

// GenerateRequest carries everything needed to build one chat completion.
type GenerateRequest struct {
	Summary  string
	History  []Exchange
	UserText string
}

// Options are the sampling parameters sent with a request.
type Options struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p,omitempty"`
	MaxTokens     int     `json:"max_tokens"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

// Config controls client construction.
type Config struct {
	URL              string
	Model            string
	GenerateTimeout  time.Duration
	SummarizeTimeout time.Duration
	Generate         Options
	Summarize        Options
}

// Client talks to an Ollama-compatible /api/chat endpoint.
type Client struct {
	url              string
	model            string
	generateOpts     Options
	summarizeOpts    Options
	summarizeTimeout time.Duration
	http             *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 45 * time.Second
	}
	if cfg.SummarizeTimeout <= 0 {
		cfg.SummarizeTimeout = 10 * time.Second
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "llama3"
	}
	return &Client{
		url:              strings.TrimSpace(cfg.URL),
		model:            model,
		generateOpts:     cfg.Generate,
		summarizeOpts:    cfg.Summarize,
		summarizeTimeout: cfg.SummarizeTimeout,
		http: &http.Client{
			Timeout: cfg.GenerateTimeout,
		},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  Options   `json:"options"`
}

type chatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Generate streams a chat completion for one turn and returns the sanitized
// reply. The request carries the persona instruction parameterized by the
// rolling summary, the recent exchanges and the new user message. Transport
// failures and empty generations degrade to sentinel replies.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, Outcome) {
	messages := make([]message, 0, 2*len(req.History)+2)
	messages = append(messages, message{Role: "system", Content: personaInstruction(req.Summary)})
	for _, ex := range req.History {
		messages = append(messages, message{Role: "user", Content: ex.UserText})
		messages = append(messages, message{Role: "assistant", Content: ex.BotText})
	}
	messages = append(messages, message{Role: "user", Content: req.UserText})

	body, err := c.post(ctx, chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
		Options:  c.generateOpts,
	})
	if err != nil {
		log.Printf("ollama generate failed: %v", err)
		return ReplyBackendError, OutcomeBackendError
	}
	defer body.Close()

	text, err := consumeStream(body)
	if err != nil {
		log.Printf("ollama stream read failed: %v", err)
		return ReplyBackendError, OutcomeBackendError
	}

	text = SanitizeAssistantText(text)
	if text == "" {
		return ReplyNoAnswer, OutcomeEmpty
	}
	return text, OutcomeOK
}

// Summarize asks for a one-line compression of the exchange. Unlike
// Generate it reports failures to the caller, which substitutes its own
// fallback fragment.
func (c *Client) Summarize(ctx context.Context, userText, botText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.summarizeTimeout)
	defer cancel()

	body, err := c.post(ctx, chatRequest{
		Model:    c.model,
		Messages: []message{{Role: "user", Content: summaryPrompt(userText, botText)}},
		Stream:   false,
		Options:  c.summarizeOpts,
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read summary response: %w", err)
	}
	var chunk chatChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return "", fmt.Errorf("decode summary response: %w", err)
	}

	out := strings.ReplaceAll(chunk.Message.Content, summaryLabel, "")
	return strings.TrimSpace(out), nil
}

func (c *Client) post(ctx context.Context, req chatRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		res.Body.Close()
		return nil, fmt.Errorf("ollama http status %d: %s", res.StatusCode, string(body))
	}
	return res.Body, nil
}

// consumeStream concatenates message contents from newline-delimited JSON
// chunks until the backend signals done. Malformed lines are skipped.
func consumeStream(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if chunk.Done {
			break
		}
		out.WriteString(chunk.Message.Content)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read: %w", err)
	}
	return out.String(), nil
}
