package transit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotOK indicates the gateway answered with a msg other than "ok".
var ErrNotOK = errors.New("transit: response not ok")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transit: GET %s: status %d", e.Path, e.Code)
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// envelope is the gateway's response wrapper.
type envelope struct {
	Msg string          `json:"msg"`
	Res json.RawMessage `json:"res"`
}

// HTTPUpstream fetches datasets from a JSON gateway. Every response is an
// envelope {"msg":"ok","res":<payload>}.
type HTTPUpstream struct {
	base   *url.URL
	client *http.Client
	token  string
}

var _ Upstream = (*HTTPUpstream)(nil)

// HTTPOption configures an HTTPUpstream.
type HTTPOption func(*HTTPUpstream)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(u *HTTPUpstream) {
		if c != nil {
			u.client = c
		}
	}
}

// WithToken sends a bearer token with every request.
func WithToken(token string) HTTPOption {
	return func(u *HTTPUpstream) { u.token = token }
}

// NewHTTPUpstream creates a client for the gateway at baseURL.
func NewHTTPUpstream(baseURL string, opts ...HTTPOption) (*HTTPUpstream, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("transit: invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transit: invalid base url %q: scheme must be http or https", baseURL)
	}
	u := &HTTPUpstream{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

func (u *HTTPUpstream) get(ctx context.Context, path string, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("transit: bad path %q: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.base.ResolveReference(ref).String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("transit: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Path: path, Code: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("transit: GET %s: decode: %w", path, err)
	}
	if env.Msg != "ok" {
		return fmt.Errorf("%w: GET %s: msg %q", ErrNotOK, path, env.Msg)
	}
	if len(env.Res) == 0 || string(env.Res) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Res, out); err != nil {
		return fmt.Errorf("transit: GET %s: decode res: %w", path, err)
	}
	return nil
}

// getAs decodes the result of GET path into a new T.
func getAs[T any](ctx context.Context, u *HTTPUpstream, path string) (T, error) {
	var out T
	err := u.get(ctx, path, &out)
	return out, err
}

func (u *HTTPUpstream) GetLiveBuses(ctx context.Context) ([]Bus, error) {
	return getAs[[]Bus](ctx, u, "buses/live")
}

func (u *HTTPUpstream) GetAllLines(ctx context.Context) ([]Line, error) {
	return getAs[[]Line](ctx, u, "lines")
}

func (u *HTTPUpstream) GetLineDetails(ctx context.Context, lineID string) (*LineDetails, error) {
	return getAs[*LineDetails](ctx, u, "lines/"+url.PathEscape(lineID))
}

func (u *HTTPUpstream) GetLiveSchedule(ctx context.Context, lineID string) ([]Departure, error) {
	return getAs[[]Departure](ctx, u, "lines/"+url.PathEscape(lineID)+"/schedule/live")
}

func (u *HTTPUpstream) GetBusSchedule(ctx context.Context, lineNumber string) ([]Departure, error) {
	return getAs[[]Departure](ctx, u, "schedule/"+url.PathEscape(lineNumber))
}

func (u *HTTPUpstream) GetBusScheduleByRides(ctx context.Context, lineNumber string) ([]Ride, error) {
	return getAs[[]Ride](ctx, u, "schedule/"+url.PathEscape(lineNumber)+"/rides")
}

func (u *HTTPUpstream) GetBusLocation(ctx context.Context, lineNumber string) (*Location, error) {
	return getAs[*Location](ctx, u, "location/"+url.PathEscape(lineNumber))
}

func (u *HTTPUpstream) GetBusLines(ctx context.Context) ([]Line, error) {
	return getAs[[]Line](ctx, u, "bus-lines")
}

func (u *HTTPUpstream) GetStations(ctx context.Context) ([]Station, error) {
	return getAs[[]Station](ctx, u, "stations")
}
