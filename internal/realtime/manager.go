// Package realtime maintains the push channel to the ticket service.
package realtime

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-desk/internal/config"
	"github.com/spec-kit/ticket-desk/internal/observability"
)

// State is the lifecycle state of the push channel.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateFailed       State = "failed"
)

var stateNames = []string{
	string(StateIdle), string(StateConnecting), string(StateConnected),
	string(StateDisconnected), string(StateFailed),
}

const (
	writeTimeout = 5 * time.Second
	closeGrace   = time.Second
)

// ErrNotConnected is returned by sends while no connection is open.
var ErrNotConnected = errors.New("push channel not connected")

// Command is a client-to-server frame.
type Command struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
}

// Options configures a Manager.
type Options struct {
	URL          string
	Channel      string
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Jitter       float64
	PingInterval time.Duration

	// OnFrame receives every inbound text frame on the read goroutine.
	OnFrame func(ctx context.Context, raw []byte)
	// OnOpen runs after each successful (re)connect and subscribe.
	OnOpen func()
	// OnStateChange observes every state transition.
	OnStateChange func(State)

	Dialer  *websocket.Dialer
	Logger  *zap.Logger
	Metrics *observability.Metrics
	// Rand returns a value in [0,1) for jitter.
	Rand func() float64
}

// OptionsFromConfig maps push settings onto Options.
func OptionsFromConfig(cfg config.PushConfig) Options {
	return Options{
		URL:          cfg.URL,
		Channel:      cfg.Channel,
		BaseDelay:    cfg.ReconnectBase(),
		MaxDelay:     cfg.ReconnectMax(),
		MaxAttempts:  cfg.MaxAttempts,
		Jitter:       cfg.Jitter,
		PingInterval: cfg.PingInterval(),
	}
}

// Manager keeps one logical connection per client id and reconnects with
// exponential backoff until Disconnect is called or attempts run out.
type Manager struct {
	opts   Options
	logger *zap.Logger

	// connMu serializes Connect and Disconnect.
	connMu sync.Mutex

	mu       sync.Mutex
	clientID string
	state    State
	cancel   context.CancelFunc
	done     chan struct{}
	conn     *websocket.Conn
	channels []string

	writeMu sync.Mutex
}

// NewManager builds an idle manager.
func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 3 * time.Second
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}
	opts.Jitter = min(max(opts.Jitter, 0), 1)

	m := &Manager{
		opts:   opts,
		logger: observability.OrNop(opts.Logger),
		state:  StateIdle,
	}
	if opts.Channel != "" {
		m.channels = []string{opts.Channel}
	}
	return m
}

// Connect starts the connection loop under clientID, generating one when
// empty, and returns the id in use. Connecting again with the same id is a
// no-op while the loop is alive; a different id, or a loop that gave up,
// is replaced by a fresh one.
func (m *Manager) Connect(clientID string) string {
	if clientID == "" {
		clientID = uuid.NewString()
	}

	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.mu.Lock()
	running := m.cancel != nil && m.clientID == clientID && m.state != StateFailed
	m.mu.Unlock()
	if running {
		return clientID
	}
	m.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.mu.Lock()
	m.clientID = clientID
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(ctx, clientID, done)
	return clientID
}

// Retry restarts a loop that gave up after its attempt budget, keeping the
// client id. It reports whether a restart happened.
func (m *Manager) Retry() bool {
	m.mu.Lock()
	failed, clientID := m.state == StateFailed, m.clientID
	m.mu.Unlock()
	if !failed || clientID == "" {
		return false
	}
	m.logger.Info("restarting push channel", zap.String("client_id", clientID))
	m.Connect(clientID)
	return true
}

// Disconnect clears the client id, closes the connection and suppresses any
// pending reconnect. It returns once the loop has stopped.
func (m *Manager) Disconnect() {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.stop()
}

func (m *Manager) stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.clientID = ""
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// ClientID returns the id of the running connection loop, or "".
func (m *Manager) ClientID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientID
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe joins channel now when connected and after every reconnect.
func (m *Manager) Subscribe(channel string) error {
	m.mu.Lock()
	if !slices.Contains(m.channels, channel) {
		m.channels = append(m.channels, channel)
	}
	m.mu.Unlock()
	return m.send(Command{Action: "subscribe", Channel: channel})
}

// Unsubscribe leaves channel.
func (m *Manager) Unsubscribe(channel string) error {
	m.mu.Lock()
	m.channels = slices.DeleteFunc(m.channels, func(c string) bool { return c == channel })
	m.mu.Unlock()
	return m.send(Command{Action: "unsubscribe", Channel: channel})
}

func (m *Manager) run(ctx context.Context, clientID string, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		m.setState(StateConnecting)
		conn, _, err := m.opts.Dialer.DialContext(ctx, m.endpoint(clientID), nil)
		if err == nil {
			attempt = 0
			err = m.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			m.setState(StateDisconnected)
			return
		}
		m.setState(StateDisconnected)

		attempt++
		if m.opts.MaxAttempts > 0 && attempt > m.opts.MaxAttempts {
			m.logger.Error("push channel giving up", zap.String("client_id", clientID), zap.Int("attempts", attempt-1), zap.Error(err))
			m.setState(StateFailed)
			return
		}
		delay := m.delay(attempt)
		m.logger.Warn("push channel closed; reconnecting",
			zap.String("client_id", clientID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		m.opts.Metrics.RecordReconnect()
	}
}

// serve owns one open connection until it fails or ctx ends.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	m.mu.Lock()
	m.conn = conn
	channels := slices.Clone(m.channels)
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
	}()

	m.setState(StateConnected)
	for _, ch := range channels {
		if err := m.write(conn, Command{Action: "subscribe", Channel: ch}); err != nil {
			_ = conn.Close()
			return err
		}
	}
	if m.opts.OnOpen != nil {
		m.opts.OnOpen()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		m.closeConn(conn)
		return nil
	})
	g.Go(func() error {
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			if kind != websocket.TextMessage || m.opts.OnFrame == nil {
				continue
			}
			m.opts.OnFrame(gctx, data)
		}
	})
	if m.opts.PingInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(m.opts.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := m.write(conn, Command{Action: "ping"}); err != nil {
						return err
					}
				}
			}
		})
	}
	return g.Wait()
}

// delay is min(base*2^(attempt-1), max), scaled down by up to the jitter fraction.
func (m *Manager) delay(attempt int) time.Duration {
	d := m.opts.MaxDelay
	if shift := attempt - 1; shift < 32 {
		if grown := m.opts.BaseDelay << shift; grown > 0 && grown < d {
			d = grown
		}
	}
	if m.opts.Jitter > 0 {
		d = time.Duration(float64(d) * (1 - m.opts.Jitter*m.opts.Rand()))
	}
	return d
}

func (m *Manager) endpoint(clientID string) string {
	u, err := url.Parse(m.opts.URL)
	if err != nil {
		return m.opts.URL
	}
	q := u.Query()
	q.Set("client_id", clientID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (m *Manager) send(cmd Command) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return m.write(conn, cmd)
}

func (m *Manager) write(conn *websocket.Conn, cmd Command) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(cmd)
}

func (m *Manager) closeConn(conn *websocket.Conn) {
	m.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGrace))
	m.writeMu.Unlock()
	_ = conn.Close()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()
	if !changed {
		return
	}
	m.opts.Metrics.SetConnectionState(string(s), stateNames)
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
}
