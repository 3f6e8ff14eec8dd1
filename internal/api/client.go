// Package api is the HTTP boundary to the fronthaul analytics backend.
//
// Every response is decoded and validated once here; callers receive
// domain types from internal/fronthaul or one of the typed errors
// NetworkError, DataShapeError and UserActionError.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fronthaul-noc/internal/fronthaul"
)

// Endpoint paths of the backend.
const (
	PathHealth      = "/health"
	PathTopology    = "/api/topology"
	PathCorrelation = "/api/correlation"
	PathCapacity    = "/api/capacity-summary"
	PathTraffic     = "/api/link-traffic"
	PathUpload      = "/api/upload"
	PathReset       = "/api/reset"
	PathChat        = "/api/chat"
)

var tracer = otel.Tracer("fronthaul-noc/api")

// Gateway is the data source of the orchestrator.
type Gateway interface {
	Topology(ctx context.Context) (*fronthaul.Topology, error)
	Correlation(ctx context.Context) (*fronthaul.CorrelationMatrix, error)
	CapacitySummary(ctx context.Context) ([]fronthaul.CapacityRecord, error)
	// LinkTraffic returns the series of one link, or of all links when
	// linkID is empty.
	LinkTraffic(ctx context.Context, linkID string) ([]fronthaul.TrafficPoint, error)
	Upload(ctx context.Context, filename string, r io.Reader) error
	Reset(ctx context.Context) error
	Chat(ctx context.Context, req ChatRequest) (ChatMessage, error)
}

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	Role    string `json:"role" validate:"required"`
	Content string `json:"content"`
}

// ChatRequest is posted to the assistant endpoint.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	ContextData any           `json:"context_data"`
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	decode  *decoder
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		decode:  newDecoder(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Health checks the backend health endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, PathHealth, nil)
	return err
}

// Topology fetches the inferred topology.
func (c *Client) Topology(ctx context.Context) (*fronthaul.Topology, error) {
	data, err := c.get(ctx, PathTopology, nil)
	if err != nil {
		return nil, err
	}
	return c.decode.Topology(PathTopology, data)
}

// Correlation fetches the correlation matrix.
func (c *Client) Correlation(ctx context.Context) (*fronthaul.CorrelationMatrix, error) {
	data, err := c.get(ctx, PathCorrelation, nil)
	if err != nil {
		return nil, err
	}
	return c.decode.Correlation(PathCorrelation, data)
}

// CapacitySummary fetches the per-link capacity summary.
func (c *Client) CapacitySummary(ctx context.Context) ([]fronthaul.CapacityRecord, error) {
	data, err := c.get(ctx, PathCapacity, nil)
	if err != nil {
		return nil, err
	}
	return c.decode.Capacity(PathCapacity, data)
}

// LinkTraffic fetches a traffic series.
func (c *Client) LinkTraffic(ctx context.Context, linkID string) ([]fronthaul.TrafficPoint, error) {
	var q url.Values
	if linkID != "" {
		q = url.Values{"link_id": {linkID}}
	}
	data, err := c.get(ctx, PathTraffic, q)
	if err != nil {
		return nil, err
	}
	return c.decode.Traffic(PathTraffic, linkID, data)
}

// Upload posts a dataset as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	_, err = c.post(ctx, "upload", PathUpload, mw.FormDataContentType(), &body)
	return err
}

// Reset reverts the backend dataset.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.post(ctx, "reset", PathReset, "", nil)
	return err
}

// Chat posts a conversation with context to the assistant.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatMessage, error) {
	payload, err := jsonAPI.Marshal(req)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("encode chat: %w", err)
	}
	data, err := c.post(ctx, "chat", PathChat, "application/json", bytes.NewReader(payload))
	if err != nil {
		return ChatMessage{}, err
	}
	var msg ChatMessage
	if err := jsonAPI.Unmarshal(data, &msg); err != nil {
		return ChatMessage{}, &DataShapeError{Endpoint: PathChat, Reason: err.Error()}
	}
	if err := c.decode.check(PathChat, "", msg); err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &NetworkError{Op: http.MethodGet, URL: u, Err: err}
	}
	data, status, err := c.do(req, path)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &NetworkError{Op: http.MethodGet, URL: u, StatusCode: status, Err: errors.New(detail(data))}
	}
	return data, nil
}

// post maps a non-success status to a UserActionError for action.
func (c *Client) post(ctx context.Context, action, path, contentType string, body io.Reader) ([]byte, error) {
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, &NetworkError{Op: http.MethodPost, URL: u, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	data, status, err := c.do(req, path)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &UserActionError{Action: action, StatusCode: status, Detail: detail(data)}
	}
	return data, nil
}

func (c *Client) do(req *http.Request, path string) ([]byte, int, error) {
	ctx, span := tracer.Start(req.Context(), "gateway "+req.Method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
		))
	defer span.End()

	start := time.Now()
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		observe(path, "error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.logger.Warn("[Gateway] request failed", "method", req.Method, "path", path, "err", err)
		return nil, 0, &NetworkError{Op: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		observe(path, "error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body failed")
		return nil, 0, &NetworkError{Op: req.Method, URL: req.URL.String(), StatusCode: resp.StatusCode, Err: err}
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode), attribute.Int("http.response_size", len(data)))
	outcome := "ok"
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = fmt.Sprintf("%dxx", resp.StatusCode/100)
		span.SetStatus(codes.Error, resp.Status)
	}
	observe(path, outcome, start)
	c.logger.Debug("[Gateway] response", "method", req.Method, "path", path, "status", resp.StatusCode, "bytes", len(data))
	return data, resp.StatusCode, nil
}

// detail extracts {"detail": "..."} from an error body, or the raw text.
func detail(body []byte) string {
	var v struct {
		Detail any `json:"detail"`
	}
	if err := jsonAPI.Unmarshal(body, &v); err == nil && v.Detail != nil {
		if s, ok := v.Detail.(string); ok {
			return s
		}
		if b, err := jsonAPI.Marshal(v.Detail); err == nil {
			return string(b)
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
