package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/memvault/memvault/pkg/api/events"
	"github.com/memvault/memvault/pkg/api/middleware"
	"github.com/memvault/memvault/pkg/auth"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/metrics"
)

const (
	defaultFeedClients  = 100
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
	feedWriteTimeout    = 10 * time.Second
	clientQueue         = 32
	relayQueue          = 256
	maxCommandBytes     = 1 << 16
)

var errFeedFull = errors.New("feed connection limit reached")

// FeedConfig configures the admin event feed.
type FeedConfig struct {
	AllowedOrigins []string
	MaxConnections int
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

// feedCommand is a client message narrowing the feed to namespaces.
type feedCommand struct {
	Type      string `json:"type"`
	Namespace string `json:"namespace"`
}

// feedClient is one websocket subscriber. queue is never closed; stop
// closes gone so the writer and the hub observe the disconnect.
type feedClient struct {
	conn      *websocket.Conn
	principal *auth.Principal
	queue     chan []byte
	gone      chan struct{}
	stopOnce  sync.Once

	mu      sync.RWMutex
	filters map[string]struct{}
}

func newFeedClient(conn *websocket.Conn, p *auth.Principal) *feedClient {
	return &feedClient{
		conn:      conn,
		principal: p,
		queue:     make(chan []byte, clientQueue),
		gone:      make(chan struct{}),
		filters:   make(map[string]struct{}),
	}
}

func (c *feedClient) stop() {
	c.stopOnce.Do(func() {
		close(c.gone)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// offer queues payload without blocking. It reports false when the client
// is gone or too slow to keep up.
func (c *feedClient) offer(payload []byte) bool {
	select {
	case <-c.gone:
		return false
	default:
	}
	select {
	case c.queue <- payload:
		return true
	default:
		return false
	}
}

// subscribe narrows the feed. Namespaces outside the key's grant are ignored.
func (c *feedClient) subscribe(namespace string) {
	if namespace == "" || (c.principal != nil && !c.principal.Allows(namespace)) {
		return
	}
	c.mu.Lock()
	c.filters[namespace] = struct{}{}
	c.mu.Unlock()
}

func (c *feedClient) unsubscribe(namespace string) {
	c.mu.Lock()
	delete(c.filters, namespace)
	c.mu.Unlock()
}

// wants reports whether an event of namespace reaches the client. Global
// events reach everyone; namespaced events need a grant and, once the client
// has subscribed to anything, a matching subscription.
func (c *feedClient) wants(namespace string) bool {
	if namespace == "" {
		return true
	}
	if c.principal != nil && !c.principal.Allows(namespace) {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.filters) == 0 {
		return true
	}
	_, ok := c.filters[namespace]
	return ok
}

func (c *feedClient) subscribed(namespace string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.filters[namespace]
	return ok
}

// feedHub is the set of live feed clients.
type feedHub struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
	limit   int
	metrics *metrics.Manager
}

func newFeedHub(limit int, m *metrics.Manager) *feedHub {
	return &feedHub{
		clients: make(map[*feedClient]struct{}),
		limit:   limit,
		metrics: m,
	}
}

func (h *feedHub) add(c *feedClient) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= h.limit {
		return errFeedFull
	}
	h.clients[c] = struct{}{}
	h.metrics.SetFeedClients(len(h.clients))
	return nil
}

// remove drops c and stops it. Removing an unknown client only stops it.
func (h *feedHub) remove(c *feedClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.metrics.SetFeedClients(len(h.clients))
	h.mu.Unlock()
	c.stop()
}

func (h *feedHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *feedHub) full() bool {
	return h.size() >= h.limit
}

func (h *feedHub) snapshot() []*feedClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*feedClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// publish queues ev on every interested client and evicts the ones that
// cannot take it.
func (h *feedHub) publish(ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	for _, c := range h.snapshot() {
		if c.wants(ev.Namespace) && !c.offer(payload) {
			h.remove(c)
		}
	}
	return nil
}

func (h *feedHub) closeAll() {
	for _, c := range h.snapshot() {
		h.remove(c)
	}
}

// FeedHandler serves the admin event feed over websocket.
type FeedHandler struct {
	log          logger.Logger
	hub          *feedHub
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongTimeout  time.Duration

	source    *events.Broadcaster
	sub       chan events.Event
	relayed   chan struct{}
	closeOnce sync.Once
}

// NewFeedHandler creates the feed handler and starts relaying events from
// source until Close.
func NewFeedHandler(source *events.Broadcaster, cfg FeedConfig, m *metrics.Manager, log logger.Logger) *FeedHandler {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultFeedClients
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}
	if log == nil {
		log = logger.Global()
	}

	origins := middleware.NewOriginMatcher(cfg.AllowedOrigins)
	h := &FeedHandler{
		log:          log,
		hub:          newFeedHub(cfg.MaxConnections, m),
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		source:       source,
		sub:          source.Subscribe(relayQueue),
		relayed:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return originAllowed(r, origins) },
		},
	}
	go h.relay()
	return h
}

func (h *FeedHandler) relay() {
	defer close(h.relayed)
	for ev := range h.sub {
		if err := h.hub.publish(ev); err != nil {
			h.log.Warn("feed publish failed", "type", ev.Type, "error", err)
		}
	}
}

// ServeHTTP handles GET /admin/events
// @Summary Admin event feed
// @Description Websocket stream of ingest, compaction, dedup, backfill and key events. Send {"type":"subscribe","namespace":"..."} to narrow it.
// @Tags admin
// @Security ApiKeyAuth
// @Success 101
// @Failure 400 {string} string "Not a websocket upgrade"
// @Failure 503 {string} string "Connection limit reached"
// @Router /admin/events [get]
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	if h.hub.full() {
		http.Error(w, errFeedFull.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("feed upgrade failed", "error", err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	c := newFeedClient(conn, p)
	if err := h.hub.add(c); err != nil {
		// Lost the race for the last slot after the upgrade.
		h.sendClose(conn, websocket.CloseTryAgainLater, err.Error())
		_ = conn.Close()
		return
	}

	go h.write(c)
	h.read(c)
}

// read applies subscribe commands until the connection fails.
func (h *FeedHandler) read(c *feedClient) {
	defer h.hub.remove(c)

	idle := h.pingInterval + h.pongTimeout
	c.conn.SetReadLimit(maxCommandBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(idle))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Debug("feed client dropped", "error", err)
			}
			return
		}
		var cmd feedCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		ns := strings.TrimSpace(cmd.Namespace)
		switch strings.ToLower(strings.TrimSpace(cmd.Type)) {
		case "subscribe":
			c.subscribe(ns)
		case "unsubscribe":
			c.unsubscribe(ns)
		}
	}
}

// write drains the client queue and keeps the connection alive with pings.
func (h *FeedHandler) write(c *feedClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	defer h.hub.remove(c)

	for {
		select {
		case <-c.gone:
			h.sendClose(c.conn, websocket.CloseNormalClosure, "")
			return
		case payload := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *FeedHandler) sendClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(feedWriteTimeout))
}

// Clients returns the number of connected feed clients.
func (h *FeedHandler) Clients() int {
	return h.hub.size()
}

// Close stops relaying and disconnects every client. Later calls are no-ops.
func (h *FeedHandler) Close() {
	h.closeOnce.Do(func() {
		h.source.Unsubscribe(h.sub)
		<-h.relayed
		h.hub.closeAll()
		if n := h.source.Dropped(); n > 0 {
			h.log.Info("feed closed", "dropped_events", n)
		}
	})
}

// originAllowed accepts requests without an Origin header, origins on the
// configured list and same-host origins.
func originAllowed(r *http.Request, origins middleware.OriginMatcher) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || origins.Allows(origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}
