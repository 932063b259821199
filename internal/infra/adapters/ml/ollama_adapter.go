package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"ml-prediction-pipeline/internal/domain/model"
	"ml-prediction-pipeline/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.MLServiceAdapter = (*OllamaAdapter)(nil)

// OllamaAdapter implements adapter.MLServiceAdapter against Ollama's
// /api/chat endpoint.
type OllamaAdapter struct {
	base   string // e.g., http://localhost:11434
	model  string
	client *http.Client
}

func NewOllamaAdapter(base, model string, timeout time.Duration) (*OllamaAdapter, error) {
	if base == "" {
		return nil, errors.New("ollama base url empty")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaAdapter{
		base:   strings.TrimRight(base, "/"),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (o *OllamaAdapter) Chat(ctx context.Context, modelID string, turns []model.ChatTurn) (string, error) {
	if modelID == "" {
		modelID = o.model
	}

	reqBody := struct {
		Model    string           `json:"model"`
		Messages []model.ChatTurn `json:"messages"`
		Stream   bool             `json:"stream"`
	}{Model: modelID, Messages: turns, Stream: false}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama http %d", adapter.ErrBadStatus, resp.StatusCode)
	}

	var payload struct {
		Message model.ChatTurn `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", adapter.ErrMalformedResponse, err)
	}
	if payload.Message.Content == "" {
		return "", fmt.Errorf("%w: empty content", adapter.ErrMalformedResponse)
	}
	return payload.Message.Content, nil
}

func (o *OllamaAdapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.base+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama http %d", adapter.ErrBadStatus, resp.StatusCode)
	}
	return nil
}

// classifyTransportError maps driver-level failures onto the port's
// categories so the worker can tell a timeout from a dead host.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", adapter.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", adapter.ErrTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", adapter.ErrUnreachable, err)
	}
	return fmt.Errorf("%w: %v", adapter.ErrUnreachable, err)
}
