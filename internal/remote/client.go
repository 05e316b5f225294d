package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/config"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

const (
	defaultTimeout  = 15 * time.Second
	maxErrorBodyLen = 512
	maxBodyBytes    = 8 << 20
)

// TicketService is the REST surface of the remote ticket service.
type TicketService interface {
	ListTickets(ctx context.Context, q dto.TicketListQuery) (*dto.TicketListResponse, error)
	GetTicket(ctx context.Context, id string) (*dto.TicketRecord, error)
	UpdateTicket(ctx context.Context, id string, req dto.TicketUpdateRequest) (*dto.TicketRecord, error)
	Ingest(ctx context.Context, req dto.IngestRequest) (*dto.IngestResponse, error)
	DeleteTicket(ctx context.Context, id string) (*dto.DeleteResponse, error)

	Claim(ctx context.Context, req dto.ClaimRequest) (*dto.ClaimResponse, error)
	Assign(ctx context.Context, req dto.AssignRequest) (*dto.AssignmentResponse, error)
	Release(ctx context.Context, req dto.ReleaseRequest) (*dto.AssignmentResponse, error)
	Transfer(ctx context.Context, req dto.TransferRequest) (*dto.AssignmentResponse, error)
	Available(ctx context.Context, q dto.AvailableQuery) (*dto.AvailableTicketsResponse, error)
	MyTickets(ctx context.Context, agentID string) (*dto.AgentTicketsResponse, error)
	AgentStats(ctx context.Context, agentID string) (*dto.AgentStatsResponse, error)
}

// Client talks to the ticket service over HTTP. Every call waits on a shared
// rate limiter and honours ctx for cancellation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client for cfg.BaseURL. A non-positive rate disables limiting.
func NewClient(cfg config.RemoteConfig, opts ...Option) *Client {
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ TicketService = (*Client)(nil)

func (c *Client) ListTickets(ctx context.Context, q dto.TicketListQuery) (*dto.TicketListResponse, error) {
	params := url.Values{}
	setIf(params, "status", q.Status)
	setIf(params, "queue", q.Queue)
	setIf(params, "priority", q.Priority)
	setIf(params, "assignee", q.Assignee)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var out dto.TicketListResponse
	if err := c.do(ctx, "list tickets", http.MethodGet, "/tickets", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTicket(ctx context.Context, id string) (*dto.TicketRecord, error) {
	var out dto.TicketResponse
	if err := c.do(ctx, "get ticket", http.MethodGet, "/tickets/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return ticketOf("get ticket", out)
}

func (c *Client) UpdateTicket(ctx context.Context, id string, req dto.TicketUpdateRequest) (*dto.TicketRecord, error) {
	var out dto.TicketResponse
	if err := c.do(ctx, "update ticket", http.MethodPatch, "/tickets/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, err
	}
	return ticketOf("update ticket", out)
}

func (c *Client) Ingest(ctx context.Context, req dto.IngestRequest) (*dto.IngestResponse, error) {
	var out dto.IngestResponse
	if err := c.do(ctx, "ingest ticket", http.MethodPost, "/tickets/ingest", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTicket(ctx context.Context, id string) (*dto.DeleteResponse, error) {
	var out dto.DeleteResponse
	if err := c.do(ctx, "delete ticket", http.MethodDelete, "/tickets/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Claim(ctx context.Context, req dto.ClaimRequest) (*dto.ClaimResponse, error) {
	var out dto.ClaimResponse
	if err := c.do(ctx, "claim ticket", http.MethodPost, "/distribution/claim", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Assign(ctx context.Context, req dto.AssignRequest) (*dto.AssignmentResponse, error) {
	var out dto.AssignmentResponse
	if err := c.do(ctx, "assign ticket", http.MethodPost, "/distribution/assign", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Release(ctx context.Context, req dto.ReleaseRequest) (*dto.AssignmentResponse, error) {
	var out dto.AssignmentResponse
	if err := c.do(ctx, "release ticket", http.MethodPost, "/distribution/release", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transfer(ctx context.Context, req dto.TransferRequest) (*dto.AssignmentResponse, error) {
	var out dto.AssignmentResponse
	if err := c.do(ctx, "transfer ticket", http.MethodPost, "/distribution/transfer", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Available(ctx context.Context, q dto.AvailableQuery) (*dto.AvailableTicketsResponse, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	setIf(params, "category", q.Category)
	setIf(params, "priority", q.Priority)

	var out dto.AvailableTicketsResponse
	if err := c.do(ctx, "list available tickets", http.MethodGet, "/distribution/available", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyTickets(ctx context.Context, agentID string) (*dto.AgentTicketsResponse, error) {
	params := url.Values{"agent_id": {agentID}}
	var out dto.AgentTicketsResponse
	if err := c.do(ctx, "list agent tickets", http.MethodGet, "/distribution/my-tickets", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AgentStats(ctx context.Context, agentID string) (*dto.AgentStatsResponse, error) {
	var out dto.AgentStatsResponse
	if err := c.do(ctx, "agent stats", http.MethodGet, "/distribution/agent-stats/"+url.PathEscape(agentID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return util.NewTransportError(op, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return util.NewInternalError(fmt.Errorf("%s: encode request: %w", op, err))
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return util.NewInternalError(fmt.Errorf("%s: build request: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("remote request failed",
			zap.String("op", op), zap.String("method", method), zap.String("path", path), zap.Error(err))
		return util.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return util.NewTransportError(op, err)
	}
	if len(raw) > maxBodyBytes {
		return util.NewDecodeError(op+" response", fmt.Errorf("body exceeds %d bytes", maxBodyBytes))
	}
	c.logger.Debug("remote request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return util.NewRemoteStatusError(op, resp.StatusCode, statusText(resp), errorDetail(raw))
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return util.NewDecodeError(op+" response", err)
	}
	return nil
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

// errorDetail extracts the "detail" message the service puts in error bodies,
// falling back to a trimmed copy of the raw body.
func errorDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		return truncate(string(body.Detail))
	}
	return truncate(strings.TrimSpace(string(raw)))
}

// truncate cuts s to at most maxErrorBodyLen bytes on a rune boundary.
func truncate(s string) string {
	if len(s) <= maxErrorBodyLen {
		return s
	}
	cut := maxErrorBodyLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ticketOf rejects a 2xx answer that carries no ticket.
func ticketOf(op string, out dto.TicketResponse) (*dto.TicketRecord, error) {
	if out.Ticket.ID == "" {
		return nil, util.NewDecodeError(op+" response", errors.New("missing ticket id"))
	}
	return &out.Ticket, nil
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
