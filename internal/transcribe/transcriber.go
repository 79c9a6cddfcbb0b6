package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const openAIBaseURL = "https://api.openai.com/v1"

// FailureKind classifies transcription failures for user-facing messaging.
// Control flow treats every kind identically: the pipeline rejects and the
// user retries manually.
type FailureKind string

const (
	FailureBadCredential  FailureKind = "bad_credential"
	FailureRateLimited    FailureKind = "rate_limited"
	FailureQuotaExhausted FailureKind = "quota_exhausted"
	FailureEmptyResult    FailureKind = "empty_result"
	FailureOther          FailureKind = "other"
)

// Error is a classified transcription failure.
type Error struct {
	Kind    FailureKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription failed (%s): %s", e.Kind, e.Message)
}

// Transcriber converts normalized audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// whisperTranscriber calls the OpenAI Whisper API.
type whisperTranscriber struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	model    string
	language string
}

// NewWhisperTranscriber creates a Transcriber backed by the OpenAI Whisper
// API. The timeout bounds one transcription call end to end.
func NewWhisperTranscriber(apiKey, model, language string, timeout time.Duration) Transcriber {
	return &whisperTranscriber{
		client:   &http.Client{Timeout: timeout},
		baseURL:  openAIBaseURL,
		apiKey:   apiKey,
		model:    model,
		language: language,
	}
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if t.apiKey == "" {
		return "", &Error{Kind: FailureBadCredential, Message: "OpenAI API key is not configured"}
	}

	audio, err := os.Open(audioPath)
	if err != nil {
		return "", &Error{Kind: FailureOther, Message: fmt.Sprintf("open audio file: %v", err)}
	}
	defer func() {
		_ = audio.Close()
	}()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", &Error{Kind: FailureOther, Message: fmt.Sprintf("build multipart request: %v", err)}
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", &Error{Kind: FailureOther, Message: fmt.Sprintf("read audio file: %v", err)}
	}
	_ = writer.WriteField("model", t.model)
	_ = writer.WriteField("language", t.language)
	_ = writer.WriteField("response_format", "text")
	if err := writer.Close(); err != nil {
		return "", &Error{Kind: FailureOther, Message: fmt.Sprintf("finalize multipart request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", &Error{Kind: FailureOther, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &Error{Kind: FailureOther, Message: fmt.Sprintf("call transcription service: %v", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: FailureOther, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyAPIError(resp.StatusCode, respBody)
	}

	transcript := strings.TrimSpace(string(respBody))
	if transcript == "" {
		return "", &Error{Kind: FailureEmptyResult, Message: "transcription returned no text; the audio may be silent"}
	}
	return transcript, nil
}

// classifyAPIError maps an OpenAI error response onto the failure taxonomy.
func classifyAPIError(status int, body []byte) *Error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	code := ""
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	switch {
	case status == http.StatusUnauthorized:
		return &Error{Kind: FailureBadCredential, Message: message}
	case code == "insufficient_quota" || strings.Contains(strings.ToLower(message), "insufficient_quota"):
		return &Error{Kind: FailureQuotaExhausted, Message: message}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: FailureRateLimited, Message: message}
	default:
		return &Error{Kind: FailureOther, Message: fmt.Sprintf("HTTP %d: %s", status, message)}
	}
}
