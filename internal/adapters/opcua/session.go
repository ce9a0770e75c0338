package opcua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v5"
	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/uabridge/internal/adapters/observability"
	"github.com/ghalamif/uabridge/internal/ports"
)

// ErrSessionNotEstablished is returned when no live session is available.
var ErrSessionNotEstablished = errors.New("opcua: session not established")

// serverStatusCurrentTime (i=2258) is read to prove the session is alive.
var serverStatusCurrentTime = ua.NewNumericNodeID(0, 2258)

// uaClient is the subset of *opcua.Client the bridge reads through.
type uaClient interface {
	Close(ctx context.Context) error
	State() opcua.ConnState
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	HistoryReadRawModified(ctx context.Context, nodes []*ua.HistoryReadValueID, details *ua.ReadRawModifiedDetails) (*ua.HistoryReadResponse, error)
	Send(ctx context.Context, req ua.Request, h func(ua.Response) error) error
}

type dialFunc func(ctx context.Context) (uaClient, error)

// SessionManager owns the single OPC UA session shared by every device task.
// Readers borrow the current handle under a read lock; replacing the handle
// takes the write lock, so a reconnect never races with an in-flight read.
type SessionManager struct {
	cfg   Config
	obs   ports.Observability
	clock clock.Clock
	dial  dialFunc

	mu     sync.RWMutex
	client uaClient

	wake chan struct{}
}

// SessionOption customizes a SessionManager.
type SessionOption func(*SessionManager)

// WithClock replaces the wall clock used by the liveness supervisor.
func WithClock(c clock.Clock) SessionOption {
	return func(m *SessionManager) {
		if c != nil {
			m.clock = c
		}
	}
}

func withDialer(d dialFunc) SessionOption {
	return func(m *SessionManager) {
		m.dial = d
	}
}

func NewSessionManager(cfg Config, obs ports.Observability, opts ...SessionOption) (*SessionManager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &SessionManager{
		cfg:   cfg,
		obs:   obs,
		clock: clock.New(),
		wake:  make(chan struct{}, 1),
	}
	m.dial = m.dialServer
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Connected reports whether a session handle is currently installed.
func (m *SessionManager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Acquire establishes the session if none is installed, retrying every
// RetryInterval until it succeeds or ctx is done.
func (m *SessionManager) Acquire(ctx context.Context) error {
	if m.Connected() {
		return nil
	}

	attempt := 0
	op := func() (uaClient, error) {
		attempt++
		c, err := m.dial(ctx)
		if err != nil {
			m.obs.LogError("opcua_session_create_failed", err,
				ports.F("endpoint", m.cfg.ServerURL),
				ports.F("attempt", attempt),
				ports.F("retry_in", m.cfg.RetryInterval.String()))
			return nil, err
		}
		return c, nil
	}

	c, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(m.cfg.RetryInterval)),
		backoff.WithMaxElapsedTime(0))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrSessionNotEstablished, ctxErr)
		}
		return fmt.Errorf("%w: %w", ErrSessionNotEstablished, err)
	}

	m.mu.Lock()
	old := m.client
	m.client = c
	m.mu.Unlock()
	if old != nil {
		m.closeClient(old)
	}

	m.obs.SetGauge(observability.SessionConnected, 1)
	m.obs.LogInfo("opcua_session_established",
		ports.F("endpoint", m.cfg.ServerURL),
		ports.F("attempts", attempt))
	return nil
}

// Run keeps the session alive until ctx is done: it acquires the session,
// checks liveness every KeepAliveInterval (or sooner when a reader reports a
// connection error), and recreates the session when the check fails.
func (m *SessionManager) Run(ctx context.Context) error {
	defer m.Close()

	for {
		if err := m.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !m.superviseUntilUnhealthy(ctx) {
			return nil
		}

		m.invalidate()
		m.obs.IncCounter(observability.SessionReconnects, 1)
	}
}

// superviseUntilUnhealthy returns false when ctx is done and true when the
// session failed its liveness check.
func (m *SessionManager) superviseUntilUnhealthy(ctx context.Context) bool {
	ticker := m.clock.Ticker(m.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		case <-m.wake:
		}

		if err := m.checkLiveness(ctx); err != nil {
			if ctx.Err() != nil {
				return false
			}
			m.obs.LogWarn("opcua_session_lost", err, ports.F("endpoint", m.cfg.ServerURL))
			return true
		}
	}
}

func (m *SessionManager) checkLiveness(ctx context.Context) error {
	return m.withClient(ctx, func(c uaClient) error {
		if st := c.State(); st != opcua.Connected {
			return fmt.Errorf("client state %s", st)
		}

		readCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
		defer cancel()
		resp, err := c.Read(readCtx, &ua.ReadRequest{
			TimestampsToReturn: ua.TimestampsToReturnNeither,
			NodesToRead: []*ua.ReadValueID{{
				NodeID:       serverStatusCurrentTime,
				AttributeID:  ua.AttributeIDValue,
				DataEncoding: &ua.QualifiedName{},
			}},
		})
		if err != nil {
			return err
		}
		if len(resp.Results) == 0 {
			return errors.New("empty server status response")
		}
		if status := resp.Results[0].Status; !isGood(status) {
			return status
		}
		return nil
	})
}

// withClient runs fn against the current session while holding the read lock.
func (m *SessionManager) withClient(ctx context.Context, fn func(uaClient) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.client == nil {
		return ErrSessionNotEstablished
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(m.client)
}

// Notify asks the supervisor to check liveness now instead of at the next tick.
func (m *SessionManager) Notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *SessionManager) invalidate() {
	m.mu.Lock()
	old := m.client
	m.client = nil
	m.mu.Unlock()

	m.obs.SetGauge(observability.SessionConnected, 0)
	if old != nil {
		m.closeClient(old)
	}
}

// Close releases the current session.
func (m *SessionManager) Close() {
	m.invalidate()
}

func (m *SessionManager) closeClient(c uaClient) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.obs.LogDebug("opcua_session_close_failed", ports.F("error", err.Error()))
	}
}

func (m *SessionManager) dialServer(ctx context.Context) (uaClient, error) {
	ep, err := m.selectEndpoint(ctx)
	if err != nil {
		return nil, err
	}

	connectURL := ep.EndpointURL
	if connectURL != m.cfg.ServerURL {
		// servers often advertise an internal hostname
		connectURL = m.cfg.ServerURL
	}

	client, err := opcua.NewClient(connectURL, m.clientOptions(ep)...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	return client, nil
}

func (m *SessionManager) selectEndpoint(ctx context.Context) (*ua.EndpointDescription, error) {
	discoverCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	endpoints, err := opcua.GetEndpoints(discoverCtx, m.cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("get endpoints: %w", err)
	}

	policy := normalizeSecurityPolicy(m.cfg.SecurityPolicy)
	mode := normalizeSecurityMode(m.cfg.SecurityMode)
	ep := matchEndpoint(endpoints, policy, mode)
	if ep == nil {
		return nil, fmt.Errorf("no endpoint for policy=%s mode=%s", policy, mode)
	}
	return ep, nil
}

func matchEndpoint(endpoints []*ua.EndpointDescription, policy string, mode ua.MessageSecurityMode) *ua.EndpointDescription {
	var best *ua.EndpointDescription
	for _, ep := range endpoints {
		if ep == nil || ep.SecurityPolicyURI != policy || ep.SecurityMode != mode {
			continue
		}
		if best == nil || ep.SecurityLevel > best.SecurityLevel {
			best = ep
		}
	}
	return best
}

func (m *SessionManager) clientOptions(ep *ua.EndpointDescription) []opcua.Option {
	tokenType := ua.UserTokenTypeAnonymous
	if m.cfg.Username != "" {
		tokenType = ua.UserTokenTypeUserName
	}

	opts := []opcua.Option{
		opcua.SecurityFromEndpoint(ep, tokenType),
		opcua.ApplicationName(m.cfg.ApplicationName),
		opcua.RequestTimeout(m.cfg.RequestTimeout),
		opcua.SessionTimeout(m.cfg.SessionTimeout),
		// sessions are recreated by the supervisor, never repaired in place
		opcua.AutoReconnect(false),
	}

	if m.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(m.cfg.Username, m.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	if ep.SecurityPolicyURI != ua.SecurityPolicyURINone {
		opts = append(opts,
			opcua.CertificateFile(m.cfg.CertificateFile),
			opcua.PrivateKeyFile(m.cfg.PrivateKeyFile))
	}
	return opts
}

// isGood reports whether the severity bits of status are Good.
func isGood(status ua.StatusCode) bool {
	return uint32(status)&0xC0000000 == 0
}

var _ ports.SessionProvider = (*SessionManager)(nil)
