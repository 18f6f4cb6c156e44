package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coastalgrand/roomstream/component"
	"github.com/coastalgrand/roomstream/errors"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// envelope is the wire format for every broadcast message.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Config holds the dispatcher's listen settings.
type Config struct {
	Addr string `json:"addr"` // host:port, ":0" binds an ephemeral port
	Path string `json:"path"` // WebSocket endpoint path
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{Addr: ":8080", Path: "/ws"}
}

// clientInfo tracks one connected WebSocket client.
type clientInfo struct {
	conn        *websocket.Conn
	connectedAt time.Time
	lastPong    atomic.Value // time.Time
	closed      atomic.Bool
	closeOnce   sync.Once

	// gorilla/websocket panics on concurrent writes to one connection
	writeMutex sync.Mutex
}

// Broadcaster is the WebSocket fan-out dispatcher. It runs its own HTTP
// listener and implements engine.Publisher.
type Broadcaster struct {
	cfg      Config
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	clients   map[*websocket.Conn]*clientInfo
	clientsMu sync.RWMutex

	shutdown  chan struct{}
	wg        sync.WaitGroup
	running   bool
	startedAt time.Time
	mu        sync.Mutex

	logger  *slog.Logger
	metrics *broadcastMetrics

	errorCount atomic.Int64
	lastError  atomic.Value // string
}

// NewBroadcaster creates the dispatcher. Metrics are disabled when the
// deps registry is nil.
func NewBroadcaster(cfg Config, deps *component.Dependencies) (*Broadcaster, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}

	m, err := newBroadcastMetrics(deps.MetricsRegistry)
	if err != nil {
		return nil, errors.WrapFatal(err, "broadcaster", "NewBroadcaster", "register metrics")
	}

	return &Broadcaster{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Dashboards are served from other origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*clientInfo),
		logger:  deps.GetLoggerWithComponent("broadcaster"),
		metrics: m,
	}, nil
}

// Meta implements component.Discoverable.
func (b *Broadcaster) Meta() component.Metadata {
	return component.Metadata{
		Name:        "broadcaster",
		Type:        "output",
		Description: "WebSocket fan-out of room and activity updates",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable.
func (b *Broadcaster) Health() component.HealthStatus {
	lastErr, _ := b.lastError.Load().(string)
	b.mu.Lock()
	running := b.running
	started := b.startedAt
	b.mu.Unlock()

	var uptime time.Duration
	if running {
		uptime = time.Since(started)
	}
	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(b.errorCount.Load()),
		LastError:  lastErr,
		Uptime:     uptime,
	}
}

// Initialize binds the listener so the bound address is known before
// Start. Implements component.LifecycleComponent.
func (b *Broadcaster) Initialize() error {
	ln, err := net.Listen("tcp", b.cfg.Addr)
	if err != nil {
		return errors.WrapFatal(err, "broadcaster", "Initialize", "bind listener")
	}
	b.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(b.cfg.Path, b.handleWebSocket)
	b.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return nil
}

// Addr returns the bound listen address. Valid after Initialize.
func (b *Broadcaster) Addr() string {
	if b.listener == nil {
		return b.cfg.Addr
	}
	return b.listener.Addr().String()
}

// Start serves the WebSocket endpoint and launches the ping loop.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.Wrap(errors.ErrAlreadyStarted, "broadcaster", "Start", "start dispatcher")
	}
	if b.listener == nil {
		b.mu.Unlock()
		return errors.Wrap(errors.ErrNotStarted, "broadcaster", "Start", "initialize before start")
	}
	b.shutdown = make(chan struct{})
	b.running = true
	b.startedAt = time.Now()
	b.mu.Unlock()

	b.wg.Add(2)
	go b.serve()
	go b.maintainClients(ctx)

	b.logger.Info("broadcaster started", "addr", b.Addr(), "path", b.cfg.Path)
	return nil
}

// Stop shuts the server down and closes every client connection.
func (b *Broadcaster) Stop(timeout time.Duration) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	close(b.shutdown)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := b.server.Shutdown(ctx); err != nil {
		_ = b.server.Close()
	}

	b.closeAllClients()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "broadcaster", "Stop", "wait for goroutines")
	}

	b.logger.Info("broadcaster stopped")
	return nil
}

// Publish marshals the envelope once and writes it to every open client.
// Clients whose writes fail are dropped from the client map; the message
// is not retried.
func (b *Broadcaster) Publish(channel string, payload any) {
	data, err := json.Marshal(envelope{Event: channel, Data: payload})
	if err != nil {
		b.metrics.sendError("marshal")
		b.recordError(err)
		return
	}

	for conn, info := range b.snapshotClients() {
		if info.closed.Load() {
			continue
		}
		if err := b.writeToClient(conn, info, data); err != nil {
			b.metrics.sendError("write")
			b.removeClient(conn, info)
			continue
		}
		b.metrics.sent()
	}
}

func (b *Broadcaster) serve() {
	defer b.wg.Done()
	if err := b.server.Serve(b.listener); err != nil && err != http.ErrServerClosed {
		b.recordError(err)
		b.logger.Error("serve failed", "error", err)
	}
}

func (b *Broadcaster) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.metrics.sendError("upgrade")
		b.recordError(err)
		return
	}

	info := &clientInfo{conn: conn, connectedAt: time.Now()}
	info.lastPong.Store(time.Now())

	b.clientsMu.Lock()
	b.clients[conn] = info
	count := len(b.clients)
	b.clientsMu.Unlock()

	b.metrics.connection()
	b.metrics.setClients(count)
	b.logger.Debug("client connected", "remote", conn.RemoteAddr().String(), "clients", count)

	b.wg.Add(1)
	go b.readPump(conn, info)
}

// readPump discards inbound frames and keeps the pong handler serviced.
// The dispatcher is one-way; clients have nothing to say.
func (b *Broadcaster) readPump(conn *websocket.Conn, info *clientInfo) {
	defer b.wg.Done()
	defer b.removeClient(conn, info)

	conn.SetPongHandler(func(string) error {
		info.lastPong.Store(time.Now())
		return nil
	})

	for {
		select {
		case <-b.shutdown:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) maintainClients(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		case <-ticker.C:
			b.pingClients()
		}
	}
}

func (b *Broadcaster) pingClients() {
	for conn, info := range b.snapshotClients() {
		if info.closed.Load() {
			continue
		}
		info.writeMutex.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		info.writeMutex.Unlock()
		if err != nil {
			b.removeClient(conn, info)
		}
	}
}

func (b *Broadcaster) snapshotClients() map[*websocket.Conn]*clientInfo {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	snapshot := make(map[*websocket.Conn]*clientInfo, len(b.clients))
	for conn, info := range b.clients {
		snapshot[conn] = info
	}
	return snapshot
}

func (b *Broadcaster) writeToClient(conn *websocket.Conn, info *clientInfo, data []byte) error {
	info.writeMutex.Lock()
	defer info.writeMutex.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Broadcaster) removeClient(conn *websocket.Conn, info *clientInfo) {
	info.closeOnce.Do(func() {
		info.closed.Store(true)

		b.clientsMu.Lock()
		delete(b.clients, conn)
		count := len(b.clients)
		b.clientsMu.Unlock()

		_ = conn.Close()
		b.metrics.setClients(count)
		b.logger.Debug("client removed", "remote", conn.RemoteAddr().String(), "clients", count)
	})
}

func (b *Broadcaster) closeAllClients() {
	for conn, info := range b.snapshotClients() {
		b.removeClient(conn, info)
	}
}

// ClientCount returns the number of currently connected clients.
func (b *Broadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) recordError(err error) {
	b.errorCount.Add(1)
	b.lastError.Store(err.Error())
}

var _ component.LifecycleComponent = (*Broadcaster)(nil)
