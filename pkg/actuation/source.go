package actuation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-lockon/internal/httpc"
	"github.com/teslashibe/go-lockon/internal/log"
	"github.com/teslashibe/go-lockon/pkg/state"
)

var (
	// ErrNoSnapshot is returned before a remote source has seen any state.
	ErrNoSnapshot = errors.New("actuation: no snapshot received yet")

	// ErrSourceClosed is returned once a streaming source has ended.
	ErrSourceClosed = errors.New("actuation: state source closed")

	// ErrSourceLost is returned when a source that delivered state keeps
	// failing, e.g. the tracker process exited.
	ErrSourceLost = errors.New("actuation: state source lost")
)

// Source yields the latest published snapshot.
type Source interface {
	Latest(ctx context.Context) (state.Snapshot, error)
}

// PublisherSource reads an in-process publisher.
type PublisherSource struct {
	Publisher *state.Publisher
}

// Latest returns the publisher's current snapshot.
func (s PublisherSource) Latest(context.Context) (state.Snapshot, error) {
	return s.Publisher.Snapshot(), nil
}

// HTTPSource polls a remote tracker's state endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source polling baseURL/api/state. A nil client
// uses the shared one.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = httpc.Client
	}
	return &HTTPSource{
		url:    strings.TrimRight(baseURL, "/") + "/api/state",
		client: client,
	}
}

// Latest fetches the current snapshot.
func (s *HTTPSource) Latest(ctx context.Context) (state.Snapshot, error) {
	var snap state.Snapshot
	if err := httpc.GetJSON(ctx, s.client, s.url, &snap); err != nil {
		return state.Snapshot{}, fmt.Errorf("fetch state: %w", err)
	}
	return snap, nil
}

// WSSource follows a remote tracker's state websocket and keeps the most
// recent snapshot.
type WSSource struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.RWMutex
	latest *state.Snapshot
	err    error

	done chan struct{}
}

// DialWS connects to baseURL/ws/state. http(s) schemes are mapped to
// ws(s).
func DialWS(ctx context.Context, baseURL string) (*WSSource, error) {
	url := wsURL(baseURL)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	s := &WSSource{
		conn:   conn,
		logger: log.Component("actuation").With("source", "ws"),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *WSSource) readLoop() {
	defer close(s.done)
	for {
		var snap state.Snapshot
		if err := s.conn.ReadJSON(&snap); err != nil {
			s.mu.Lock()
			s.err = fmt.Errorf("%w: %v", ErrSourceClosed, err)
			s.mu.Unlock()
			s.logger.Info("state stream closed", "error", err)
			return
		}
		s.mu.Lock()
		s.latest = &snap
		s.mu.Unlock()
	}
}

// Latest returns the last snapshot received. A received shutdown stays
// visible after the stream closes; otherwise a closed stream is an error.
func (s *WSSource) Latest(context.Context) (state.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.latest != nil && s.latest.Shutdown:
		return *s.latest, nil
	case s.err != nil:
		return state.Snapshot{}, s.err
	case s.latest == nil:
		return state.Snapshot{}, ErrNoSnapshot
	}
	return *s.latest, nil
}

// Close closes the connection and waits for the reader to exit.
func (s *WSSource) Close() error {
	err := s.conn.Close()
	<-s.done
	return err
}

func wsURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/state"
}
