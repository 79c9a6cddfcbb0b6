package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"app/internal/model"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"

	// Transcripts beyond this are truncated before prompting. Meeting
	// audio at 90 minutes comfortably fits; anything longer loses tail
	// context rather than failing outright.
	maxTranscriptChars = 30000
)

// FailureKind classifies summarization failures for caller-facing messages.
type FailureKind string

const (
	FailureBadCredential FailureKind = "bad_credential"
	FailureRateLimited   FailureKind = "rate_limited"
	FailureOther         FailureKind = "other"
)

// Error is a classified summarization failure.
type Error struct {
	Kind    FailureKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("summarize: %s (%s)", e.Message, e.Kind)
}

// Summarizer produces a structured summary from a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (*model.Summary, ParseTier, error)
}

type groqSummarizer struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewGroqSummarizer returns a Summarizer backed by Groq's OpenAI-compatible
// chat completions API.
func NewGroqSummarizer(apiKey, modelName string, timeout time.Duration) Summarizer {
	return &groqSummarizer{
		client:  &http.Client{Timeout: timeout},
		baseURL: groqBaseURL,
		apiKey:  apiKey,
		model:   modelName,
	}
}

const systemPrompt = `You are a meeting assistant. Summarize the transcript into JSON with exactly these keys:
{"short_summary": "2-3 sentence overview", "key_points": ["..."], "action_items": ["..."]}
Write in the same language as the transcript. Respond with the JSON object only, no extra text.`

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (g *groqSummarizer) Summarize(ctx context.Context, transcript string) (*model.Summary, ParseTier, error) {
	if g.apiKey == "" {
		return nil, "", &Error{Kind: FailureBadCredential, Message: "summarization API key is not configured"}
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, "", &Error{Kind: FailureOther, Message: "transcript is empty"}
	}
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}

	payload := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature:    0.3,
		ResponseFormat: &respFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode summarization request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create summarization request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("summarization request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read summarization response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", classifyAPIError(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, "", fmt.Errorf("failed to decode summarization response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, "", &Error{Kind: FailureOther, Message: "summarization response contained no choices"}
	}

	summary, tier := ParseSummary(parsed.Choices[0].Message.Content)
	return &summary, tier, nil
}

func classifyAPIError(status int, body []byte) error {
	var parsed chatResponse
	msg := "summarization request was rejected"
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized:
		return &Error{Kind: FailureBadCredential, Message: msg}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: FailureRateLimited, Message: msg}
	default:
		return &Error{Kind: FailureOther, Message: fmt.Sprintf("%s (status %d)", msg, status)}
	}
}
