package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrMissingAPIKey = errors.New("llm api key is not configured")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	// EmbeddingRPS limits embedding calls per second. Zero disables the limit.
	EmbeddingRPS float64
	// Timeout bounds a whole embedding call. Streaming calls only wait this
	// long for response headers and are otherwise bounded by their context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible chat completions and embeddings API.
type Client struct {
	cfg          ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	streamClient := newStreamClient(httpClient, timeout)
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.EmbeddingRPS > 0 {
		burst := int(cfg.EmbeddingRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbeddingRPS), burst)
	}
	return &Client{cfg: cfg, httpClient: httpClient, streamClient: streamClient, limiter: limiter}
}

// newStreamClient copies base with no overall timeout. Only the wait for
// response headers is bounded; the request context bounds the body.
func newStreamClient(base *http.Client, headerTimeout time.Duration) *http.Client {
	stream := *base
	stream.Timeout = 0
	if stream.Transport == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = headerTimeout
		stream.Transport = transport
	}
	return &stream
}

type Turn struct {
	Role string
	Text string
}

type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Part is one piece of the current user turn: either text or an inline
// base64 attachment.
type Part struct {
	Text     string
	MimeType string
	Data     string
	Name     string
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func InlinePart(mimeType, data, name string) Part {
	return Part{MimeType: mimeType, Data: data, Name: name}
}

func (p Part) IsInline() bool {
	return p.Data != ""
}

type SessionConfig struct {
	SystemPolicy string
	Safety       []SafetySetting
	History      []Turn
}

// Session is a configured conversation ready to accept the current turn.
type Session struct {
	client *Client
	cfg    SessionConfig
}

// DeltaStream yields incremental response text. Recv returns io.EOF once the
// response is complete. Close may be called at any time and more than once.
type DeltaStream interface {
	Recv() (string, error)
	Close() error
}

func (c *Client) NewSession(cfg SessionConfig) (*Session, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if c.cfg.BaseURL == "" || c.cfg.Model == "" {
		return nil, fmt.Errorf("llm base url and model are required")
	}
	return &Session{client: c, cfg: cfg}, nil
}

// SendStreaming opens a streaming completion for parts on top of the
// session history.
func (s *Session) SendStreaming(ctx context.Context, parts []Part) (DeltaStream, error) {
	reqBody := map[string]interface{}{
		"model":    s.client.cfg.Model,
		"messages": s.messages(parts),
		"stream":   true,
	}
	if len(s.cfg.Safety) > 0 {
		reqBody["extra_body"] = map[string]interface{}{
			"google": map[string]interface{}{
				"safety_settings": s.cfg.Safety,
			},
		}
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal llm stream request failed: %w", err)
	}

	url := s.client.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm stream request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+s.client.cfg.APIKey)

	resp, err := s.client.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm stream request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("llm stream status %d: %s", resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	return &sseStream{body: resp.Body, scanner: scanner}, nil
}

func (s *Session) messages(parts []Part) []map[string]interface{} {
	messages := make([]map[string]interface{}, 0, len(s.cfg.History)+2)
	if strings.TrimSpace(s.cfg.SystemPolicy) != "" {
		messages = append(messages, map[string]interface{}{
			"role":    "system",
			"content": s.cfg.SystemPolicy,
		})
	}
	for _, turn := range s.cfg.History {
		role := turn.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		messages = append(messages, map[string]interface{}{
			"role":    role,
			"content": turn.Text,
		})
	}

	content := make([]map[string]interface{}, 0, len(parts))
	for _, p := range parts {
		content = append(content, contentPart(p))
	}
	messages = append(messages, map[string]interface{}{
		"role":    RoleUser,
		"content": content,
	})
	return messages
}

func contentPart(p Part) map[string]interface{} {
	if !p.IsInline() {
		return map[string]interface{}{"type": "text", "text": p.Text}
	}
	dataURL := "data:" + p.MimeType + ";base64," + p.Data
	if strings.HasPrefix(p.MimeType, "image/") {
		return map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]interface{}{"url": dataURL},
		}
	}
	file := map[string]interface{}{"file_data": dataURL}
	if p.Name != "" {
		file["filename"] = p.Name
	}
	return map[string]interface{}{"type": "file", "file": file}
}

type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	closeOnce sync.Once
	closeErr  error
}

func (s *sseStream) Recv() (string, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return "", io.EOF
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("llm stream error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("scan llm stream failed: %w", err)
	}
	return "", io.EOF
}

func (s *sseStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
