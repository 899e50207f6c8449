package engine

// Package engine provides the HTTP client for the remote service performing
// the homomorphic tally and threshold decryption math. Calls are synchronous
// and minutes-scale; failures are classified so workers can retry transport
// and server errors while treating rejected inputs as final.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quorumworks/tallyd/internal/core"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
)

// Endpoint paths served by the engine.
const (
	tallyPath       = "/tally/chunk"
	partialPath     = "/decrypt/partial"
	compensatedPath = "/decrypt/compensated"
	combinePath     = "/combine"
)

// maxResponseBytes bounds how much of an engine response is read. Chunk
// aggregates are large but never unbounded.
const maxResponseBytes = 32 << 20

// statusOK is the success discriminator in the engine's response envelope.
const statusOK = "ok"

// envelope is the engine's response wrapper. Error carries the engine's
// rejection reason when Status is not ok.
type envelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Config captures runtime configuration for the engine client.
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
	Client    *http.Client
}

// Client calls the engine's chunk endpoints over HTTP.
type Client struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewClient constructs an engine client from config. Callers must provide a
// base URL with an http or https scheme.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("engine base url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid engine base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid engine base url scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("invalid engine base url: missing host")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:   base,
		authToken: strings.TrimSpace(cfg.AuthToken),
		client:    hc,
	}, nil
}

// TallyChunk submits one chunk of encrypted ballots for homomorphic aggregation.
func (c *Client) TallyChunk(
	ctx context.Context,
	req *core.TallyChunkRequest,
) (*core.TallyChunkResult, error) {
	if req == nil {
		return nil, apperrors.Validation("tally chunk request is required")
	}
	var res core.TallyChunkResult
	if err := c.post(ctx, tallyPath, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ComputePartialShare asks for one guardian's decryption share of a chunk tally.
func (c *Client) ComputePartialShare(
	ctx context.Context,
	req *core.PartialShareRequest,
) (*core.ShareResult, error) {
	if req == nil {
		return nil, apperrors.Validation("partial share request is required")
	}
	var res core.ShareResult
	if err := c.post(ctx, partialPath, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ComputeCompensatedShare asks for a share computed on behalf of a missing guardian.
func (c *Client) ComputeCompensatedShare(
	ctx context.Context,
	req *core.CompensatedShareRequest,
) (*core.ShareResult, error) {
	if req == nil {
		return nil, apperrors.Validation("compensated share request is required")
	}
	var res core.ShareResult
	if err := c.post(ctx, compensatedPath, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CombineShares asks the engine to assemble a chunk's plaintext from shares.
func (c *Client) CombineShares(
	ctx context.Context,
	req *core.CombineRequest,
) (*core.CombineResult, error) {
	if req == nil {
		return nil, apperrors.Validation("combine request is required")
	}
	var res core.CombineResult
	if err := c.post(ctx, combinePath, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// post sends one JSON request and decodes the result into out. The returned
// error carries the retryability class: 5xx and transport problems are
// transient, 4xx and envelope rejections are final.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "encode engine request for %s", path)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "create engine request for %s", path)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyTransportError(err, path)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeUnavailable, "read engine response from %s", path)
	}

	if statusErr := classifyStatus(resp.StatusCode, path, raw); statusErr != nil {
		return statusErr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "decode engine response from %s", path)
	}
	if env.Status != statusOK {
		return apperrors.Validationf("engine rejected %s: %s", path, rejectionReason(env))
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "decode engine result from %s", path)
		}
	}
	return nil
}

// classifyTransportError maps client.Do failures onto the retryability taxonomy.
func classifyTransportError(err error, path string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "engine call %s timed out", path)
	case errors.Is(err, context.Canceled):
		return apperrors.Wrapf(err, apperrors.ErrCodeCanceled, "engine call %s canceled", path)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "engine call %s timed out", path)
	}
	return apperrors.Wrapf(err, apperrors.ErrCodeUnavailable, "engine call %s failed", path)
}

// classifyStatus maps non-2xx responses: 4xx is a final rejection of the
// inputs, 5xx means the engine itself is struggling and the call may be retried.
func classifyStatus(code int, path string, raw []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return apperrors.Validationf("engine rejected %s: status %d: %s", path, code, bodyReason(raw))
	default:
		return apperrors.Unavailablef("engine error on %s: status %d: %s", path, code, bodyReason(raw))
	}
}

// rejectionReason extracts the engine's reason from an error envelope.
func rejectionReason(env envelope) string {
	if env.Error != "" {
		return env.Error
	}
	return "engine reported failure"
}

// bodyReason pulls a short reason out of an error response body, preferring
// the envelope's error field over raw bytes.
func bodyReason(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != "" {
		return env.Error
	}
	reason := strings.TrimSpace(string(raw))
	if reason == "" {
		return "no response body"
	}
	const maxReason = 256
	if len(reason) > maxReason {
		reason = reason[:maxReason]
	}
	return reason
}

var _ core.CryptoEngine = (*Client)(nil)
