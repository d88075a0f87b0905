package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/morezero/textcipher/pkg/dispatcher"
	"github.com/morezero/textcipher/pkg/registry"
)

const maxResponseBytes = 1 << 20

// HTTPRemote reaches a dispatcher through the HTTP API.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRemote creates a new HTTPRemote. A nil client uses http.DefaultClient;
// deadlines come from the request context.
func NewHTTPRemote(baseURL string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRemote{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Transform posts to /api/encode or /api/decode and decodes the body.
func (r *HTTPRemote) Transform(ctx context.Context, req *registry.TransformRequest, dir registry.Direction) (*dispatcher.TransformResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, transportError(string(dir), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/"+string(dir), bytes.NewReader(body))
	if err != nil {
		return nil, transportError(string(dir), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	status, data, err := r.do(httpReq)
	if err != nil {
		return nil, transportError(string(dir), err)
	}
	if !answerStatus(status) {
		return nil, transportError(string(dir), fmt.Errorf("unexpected status %d", status))
	}

	var wire dispatcher.WireResponse
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, transportError(string(dir), fmt.Errorf("undecodable body: %w", err))
	}
	res, err := dispatcher.FromWire(&wire, dir)
	if err != nil {
		return nil, transportError(string(dir), err)
	}
	return res, nil
}

// Health calls GET /api/health.
func (r *HTTPRemote) Health(ctx context.Context) (*dispatcher.HealthOutput, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/health", nil)
	if err != nil {
		return nil, transportError(dispatcher.MethodHealth, err)
	}

	status, data, err := r.do(httpReq)
	if err != nil {
		return nil, transportError(dispatcher.MethodHealth, err)
	}
	if status != http.StatusOK {
		return nil, transportError(dispatcher.MethodHealth, fmt.Errorf("unexpected status %d", status))
	}

	var out dispatcher.HealthOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, transportError(dispatcher.MethodHealth, fmt.Errorf("undecodable body: %w", err))
	}
	return &out, nil
}

func (r *HTTPRemote) do(req *http.Request) (int, []byte, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// answerStatus reports whether status can carry a transform answer. Anything
// else, such as 413 for an oversized body, is a transport rejection.
func answerStatus(status int) bool {
	switch status {
	case http.StatusOK, http.StatusBadRequest, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
