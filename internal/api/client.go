// Package api is the REST client for the simulation-management service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Option configures a Client.
type Option func(*Client)

// Client issues requests against a fixed base URL.
// After creation it is immutable and safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	log        zerolog.Logger
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		headers:    make(map[string]string),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListMachines fetches every machine, available or not.
func (c *Client) ListMachines(ctx context.Context) ([]Machine, error) {
	var machines []Machine
	if err := c.do(ctx, http.MethodGet, "/machines", nil, &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

// CreateMachine registers a new machine.
func (c *Client) CreateMachine(ctx context.Context, name string) error {
	body := struct {
		Name string `json:"name"`
	}{name}
	return c.do(ctx, http.MethodPost, "/machines", body, nil)
}

// ListSimulations fetches the simulations list filtered and ordered by q.
func (c *Client) ListSimulations(ctx context.Context, q ListQuery) ([]SimulationSummary, error) {
	v := url.Values{}
	v.Set("status", string(q.Status))
	v.Set("order_by", q.OrderBy)
	v.Set("order_direction", q.OrderDirection)

	var sims []SimulationSummary
	if err := c.do(ctx, http.MethodGet, "/simulations?"+v.Encode(), nil, &sims); err != nil {
		return nil, err
	}
	return sims, nil
}

// CreateSimulation submits a new simulation.
func (c *Client) CreateSimulation(ctx context.Context, s NewSimulation) error {
	return c.do(ctx, http.MethodPost, "/simulations", s, nil)
}

// DeleteSimulation removes a simulation and its convergence history.
func (c *Client) DeleteSimulation(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, simulationPath(id), nil, nil)
}

// GetSimulation fetches the full detail record of one simulation.
func (c *Client) GetSimulation(ctx context.Context, id int64) (*Simulation, error) {
	var sim Simulation
	if err := c.do(ctx, http.MethodGet, simulationPath(id), nil, &sim); err != nil {
		return nil, err
	}
	return &sim, nil
}

// UpdateStatus requests a status transition.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	body := struct {
		Status Status `json:"status"`
	}{status}
	return c.do(ctx, http.MethodPatch, simulationPath(id), body, nil)
}

// AssignMachine binds a machine to a simulation. The server moves the
// simulation to running as a side effect.
func (c *Client) AssignMachine(ctx context.Context, id, machineID int64) error {
	body := struct {
		MachineID int64 `json:"machine_id"`
	}{machineID}
	return c.do(ctx, http.MethodPatch, simulationPath(id), body, nil)
}

// Convergence fetches the ordered convergence history of a simulation.
func (c *Client) Convergence(ctx context.Context, id int64) ([]Sample, error) {
	var samples []Sample
	if err := c.do(ctx, http.MethodGet, simulationPath(id)+"/convergence", nil, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func simulationPath(id int64) string {
	return "/simulations/" + strconv.FormatInt(id, 10)
}

// do sends one request. A nil in skips the body; a nil out discards the
// response body after the status check.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: serverMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// serverMessage extracts the {"message": ...} field the service puts on
// error responses, falling back to the raw body.
func serverMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var msg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &msg) == nil && msg.Message != "" {
		return msg.Message
	}
	return strings.TrimSpace(string(data))
}
