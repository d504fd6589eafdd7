package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lunia-systems/lunia-console/internal/model"
	"github.com/lunia-systems/lunia-console/internal/pkg/apperrors"
	"github.com/lunia-systems/lunia-console/internal/pkg/metrics"
)

// Identity header names expected by the control API. Admin and ops
// credentials are additive with the bearer token, never exclusive.
const (
	HeaderTenantID   = "X-Tenant-Id"
	HeaderAdminToken = "X-Admin-Token"
	HeaderOpsToken   = "X-OPS-TOKEN"
)

// Client speaks the control API's {data}/{error} envelope protocol. It is
// stateless: the caller's Identity is passed per request so every poll
// cycle carries the credentials current at that instant.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send issues one request and unwraps the envelope. It returns the
// envelope's data field when present, the raw JSON body when the reply is
// JSON without an envelope, and nil for non-JSON or empty replies.
// Context cancellation is propagated untouched so superseded poll cycles
// can be told apart from real failures.
func (c *Client) Send(ctx context.Context, method, path string, body any, id model.Identity) (json.RawMessage, error) {
	url := path
	if !strings.HasPrefix(path, "http") {
		url = c.baseURL + path
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidRequest, "encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	applyIdentityHeaders(req.Header, id)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RequestLatency.WithLabelValues(pathClass(path)).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.NewRequestError(err.Error(), 0, nil)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.NewRequestError(err.Error(), resp.StatusCode, nil)
	}

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	var envelope model.Envelope
	envelopeOK := false
	if isJSON && len(raw) > 0 {
		// A malformed JSON payload is treated as absent, not fatal.
		if err := json.Unmarshal(raw, &envelope); err == nil {
			envelopeOK = true
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := http.StatusText(resp.StatusCode)
		if envelopeOK && len(envelope.Error) > 0 {
			message = envelopeErrorMessage(envelope.Error)
		}
		return nil, apperrors.NewRequestError(message, resp.StatusCode, raw)
	}

	if !isJSON || len(raw) == 0 {
		return nil, nil
	}
	if envelopeOK && len(envelope.Data) > 0 {
		return envelope.Data, nil
	}
	if envelopeOK || json.Valid(raw) {
		return json.RawMessage(raw), nil
	}
	return nil, nil
}

// applyIdentityHeaders attaches whatever credential facets the identity
// carries. An admin token implies the ops header too, falling back to the
// admin token itself when no distinct ops token is set.
func applyIdentityHeaders(h http.Header, id model.Identity) {
	if id.TenantID != "" {
		h.Set(HeaderTenantID, id.TenantID)
	}
	creds := id.Credentials
	if creds.AdminToken != "" {
		h.Set(HeaderAdminToken, creds.AdminToken)
		ops := creds.OpsToken
		if ops == "" {
			ops = creds.AdminToken
		}
		h.Set(HeaderOpsToken, ops)
	} else if creds.OpsToken != "" {
		h.Set(HeaderOpsToken, creds.OpsToken)
	}
	if creds.BearerToken != "" {
		h.Set("Authorization", "Bearer "+creds.BearerToken)
	}
}

func envelopeErrorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// pathClass collapses parameterized paths so the latency histogram keeps a
// bounded label set.
func pathClass(path string) string {
	if idx := strings.IndexAny(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 2 {
		return "/" + parts[0] + "/" + parts[1]
	}
	return "/" + parts[0]
}

// call sends a request and decodes the envelope data into T. An absent
// payload yields T's zero value; a payload that fails to decode reports a
// decode failure.
func call[T any](ctx context.Context, c *Client, method, path string, body any, id model.Identity) (T, error) {
	var out T
	raw, err := c.Send(ctx, method, path, body, id)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, apperrors.New(apperrors.ErrDecodeFailed, "decode "+path, err)
	}
	return out, nil
}
