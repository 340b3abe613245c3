package session

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

	"candidate-collab/internal/dto"
	"candidate-collab/internal/metrics"
	"candidate-collab/internal/pkg/logger"
)

// Operation describes one REST call relative to the API base URL.
type Operation struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{} // JSON-encoded when non-nil
	// Public operations never carry a bearer token and never trigger a refresh.
	Public bool
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Transport executes REST operations on behalf of the signed-in user and
// repairs expired access tokens through the Coordinator.
type Transport struct {
	baseURL  string
	client   *http.Client
	coord    *Coordinator
	notifier Notifier
	metrics  *metrics.Session
	log      logger.ILogger
}

type TransportOption func(*Transport)

func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) { t.client = c }
}

func WithTransportNotifier(n Notifier) TransportOption {
	return func(t *Transport) { t.notifier = n }
}

func WithTransportMetrics(m *metrics.Session) TransportOption {
	return func(t *Transport) { t.metrics = m }
}

func WithTransportLogger(log logger.ILogger) TransportOption {
	return func(t *Transport) { t.log = log }
}

// NewTransport wires itself in as the coordinator's refresher.
func NewTransport(baseURL string, coord *Coordinator, opts ...TransportOption) *Transport {
	t := &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		coord:   coord,
		metrics: metrics.NewSession(nil),
		log:     logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.notifier == nil {
		t.notifier = NewLogNotifier(t.log)
	}
	coord.SetRefresher(t.refresh)
	return t
}

func (t *Transport) Coordinator() *Coordinator {
	return t.coord
}

// Execute runs op. A 401 on an authenticated operation is repaired once through
// the coordinator and the operation is retried a single time; a second 401 is
// reported to the user and returned.
func (t *Transport) Execute(ctx context.Context, op Operation) (*Response, error) {
	if op.Public {
		resp, err := t.do(ctx, op, "")
		if err != nil {
			return nil, err
		}
		if e := responseError(resp); e != nil {
			if resp.Status == http.StatusUnauthorized {
				t.notifier.Notify(messageOr(e, "Unauthorized request"))
			}
			return nil, e
		}
		return resp, nil
	}

	token := t.coord.AccessToken()
	resp, err := t.do(ctx, op, token)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized {
		if e := responseError(resp); e != nil {
			return nil, e
		}
		return resp, nil
	}

	fresh, err := t.coord.Await(ctx, token)
	if errors.Is(err, ErrNoSession) {
		return nil, responseError(resp)
	}
	if err != nil {
		return nil, err
	}

	resp, err = t.do(ctx, op, fresh)
	if err != nil {
		return nil, err
	}
	if e := responseError(resp); e != nil {
		if resp.Status == http.StatusUnauthorized {
			t.metrics.Unauthorized.Inc()
			t.log.Warn("SESSION", "Request still unauthorized after refresh", map[string]interface{}{
				"method": op.Method,
				"path":   op.Path,
			})
			t.notifier.Notify(messageOr(e, "Unauthorized request"))
		}
		return nil, e
	}
	return resp, nil
}

// refresh calls the refresh endpoint directly. It deliberately skips Execute so
// a rejected refresh produces only the coordinator's single message.
func (t *Transport) refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	op := Operation{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   dto.RefreshRequest{RefreshToken: refreshToken},
		Public: true,
	}
	resp, err := t.do(ctx, op, "")
	if err != nil {
		return Tokens{}, err
	}
	if e := responseError(resp); e != nil {
		return Tokens{}, e
	}

	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := resp.Decode(&out); err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

func (t *Transport) do(ctx context.Context, op Operation, token string) (*Response, error) {
	target := t.baseURL + op.Path
	if len(op.Query) > 0 {
		target += "?" + op.Query.Encode()
	}

	var body io.Reader
	if op.Body != nil {
		raw, err := json.Marshal(op.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, networkError(err)
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: raw}, nil
}

// responseError maps a non-2xx response onto the taxonomy, nil otherwise.
func responseError(resp *Response) *Error {
	if resp.Status >= 200 && resp.Status < 300 {
		return nil
	}
	var body dto.ErrorResponse
	_ = json.Unmarshal(resp.Body, &body)
	return &Error{Kind: statusKind(resp.Status), Status: resp.Status, Message: body.Message}
}

func messageOr(e *Error, fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	return fallback
}
