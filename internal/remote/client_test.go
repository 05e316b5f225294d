package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/config"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.RemoteConfig{BaseURL: srv.URL + "/api/", RequestTimeoutSeconds: 5})
}

func TestListTicketsSendsFilters(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_ = json.NewEncoder(w).Encode(dto.TicketListResponse{
			Tickets: []dto.TicketRecord{{ID: "t1", Status: "INBOX", CurrentQueue: "INBOX"}},
			Total:   1,
			Limit:   50,
		})
	}))

	out, err := c.ListTickets(context.Background(), dto.TicketListQuery{Queue: "TRIAGE", Limit: 50, Offset: 100})
	require.NoError(t, err)
	require.Len(t, out.Tickets, 1)
	assert.Equal(t, "t1", out.Tickets[0].ID)

	assert.Equal(t, "/api/tickets", got.URL.Path)
	assert.Equal(t, "TRIAGE", got.URL.Query().Get("queue"))
	assert.Equal(t, "50", got.URL.Query().Get("limit"))
	assert.Equal(t, "100", got.URL.Query().Get("offset"))
	assert.False(t, got.URL.Query().Has("status"))
}

func TestUpdateTicketSendsOnlySetFields(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/tickets/t1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(dto.TicketResponse{Ticket: dto.TicketRecord{ID: "t1", Priority: "HIGH"}})
	}))

	priority := "HIGH"
	rec, err := c.UpdateTicket(context.Background(), "t1", dto.TicketUpdateRequest{Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, "HIGH", rec.Priority)
	assert.Equal(t, map[string]any{"priority": "HIGH"}, body)
}

func TestReleaseForwardsRetriage(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/distribution/release", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(dto.AssignmentResponse{Success: true, TicketID: "t1"})
	}))

	retriage := true
	_, err := c.Release(context.Background(), dto.ReleaseRequest{TicketID: "t1", AgentID: "user-1", Retriage: &retriage})
	require.NoError(t, err)
	assert.Equal(t, true, body["retriage"])
}

func TestNonSuccessStatusIsTyped(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Ticket t9 not found"}`))
	}))

	_, err := c.GetTicket(context.Background(), "t9")
	require.Error(t, err)
	status, ok := util.RemoteStatus(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, status)

	de := util.ToDomainError(err)
	assert.Equal(t, util.CodeRemoteStatus, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	assert.Equal(t, "Ticket t9 not found", de.Details["detail"])
}

func TestMalformedBodyIsDecodeError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ticket":`))
	}))

	_, err := c.GetTicket(context.Background(), "t1")
	assert.True(t, util.IsCode(err, util.CodeDecode))
}

func TestEmptySuccessBodyIsDecodeError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec, err := c.UpdateTicket(context.Background(), "t1", dto.TicketUpdateRequest{})
	assert.Nil(t, rec)
	assert.True(t, util.IsCode(err, util.CodeDecode))

	rec, err = c.GetTicket(context.Background(), "t1")
	assert.Nil(t, rec)
	assert.True(t, util.IsCode(err, util.CodeDecode))
}

func TestOversizedBodyIsDecodeError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tickets":[],"pad":"`))
		_, _ = w.Write([]byte(strings.Repeat("x", maxBodyBytes)))
		_, _ = w.Write([]byte(`"}`))
	}))

	_, err := c.ListTickets(context.Background(), dto.TicketListQuery{})
	assert.True(t, util.IsCode(err, util.CodeDecode))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(config.RemoteConfig{BaseURL: base})
	_, err := c.ListTickets(context.Background(), dto.TicketListQuery{})
	assert.True(t, util.IsCode(err, util.CodeTransport))
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ListTickets(ctx, dto.TicketListQuery{})
	assert.True(t, util.IsCode(err, util.CodeCancelled))
}

func TestErrorDetailFallsBackToBody(t *testing.T) {
	assert.Equal(t, "boom", errorDetail([]byte(" boom ")))
	assert.Equal(t, `[{"msg":"field required"}]`, errorDetail([]byte(`{"detail":[{"msg":"field required"}]}`)))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", maxErrorBodyLen-1) + "é" + "tail"
	got := truncate(s)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxErrorBodyLen-1), got)
	assert.Equal(t, "short", truncate("short"))
}
