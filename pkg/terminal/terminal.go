// Package terminal hosts Logo interpreter sessions over websockets.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antibyte/retroturtle/pkg/auth"
	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/examples"
	"github.com/antibyte/retroturtle/pkg/logger"
	"github.com/antibyte/retroturtle/pkg/logo"
	"github.com/antibyte/retroturtle/pkg/resources"
	"github.com/antibyte/retroturtle/pkg/shared"
	"github.com/antibyte/retroturtle/pkg/storage"
)

// Request types understood by the server.
const (
	RequestRun       = "run"
	RequestExample   = "example"
	RequestReset     = "reset"
	RequestSync      = "sync"
	RequestKeepalive = "keepalive"
)

// Client send errors.
var (
	ErrClientClosed = errors.New("client closed")
	ErrSendTimeout  = errors.New("send timeout")
)

// TerminalRequest is a message from the browser.
type TerminalRequest struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// logoSession is the interpreter state of one session. mu serialises every
// access to interp, including runs.
type logoSession struct {
	mu     sync.Mutex
	interp *logo.Interpreter
}

// TerminalHandler accepts websocket connections and runs their programs.
type TerminalHandler struct {
	journal  *storage.Journal
	sessions *resources.SessionResourceManager
	catalog  *examples.Catalog

	logoSessions map[string]*logoSession
	mutex        sync.Mutex

	stepLimit int
	upgrader  websocket.Upgrader

	clientManager     *ClientManager
	securityValidator *SecurityValidator
}

// Option configures a TerminalHandler.
type Option func(*TerminalHandler)

// WithCatalog enables "example" requests and the examples API.
func WithCatalog(c *examples.Catalog) Option {
	return func(h *TerminalHandler) { h.catalog = c }
}

// Client is one websocket connection bound to a session.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	handler   *TerminalHandler
	ipAddress string
	sessionID string

	ctx       context.Context // cancelled when the client goes away
	cancel    context.CancelFunc
	shutdown  chan struct{}
	closeOnce sync.Once
}

// Send queues message for the write pump. It blocks while the queue is
// full and gives up after the write timeout.
func (c *Client) Send(message []byte) error {
	select {
	case <-c.shutdown:
		return ErrClientClosed
	default:
	}

	timer := time.NewTimer(getWriteWait())
	defer timer.Stop()

	select {
	case c.send <- message:
		return nil
	case <-c.shutdown:
		return ErrClientClosed
	case <-timer.C:
		logger.WebSocketWarn("Send timeout for session %s, closing client", c.sessionID)
		if c.handler != nil {
			go c.handler.cleanupClient(c)
		}
		return ErrSendTimeout
	}
}

// NewTerminalHandler creates a handler that journals runs to journal and
// enforces the limits of sessions. A nil journal records nothing.
func NewTerminalHandler(journal *storage.Journal, sessions *resources.SessionResourceManager, opts ...Option) *TerminalHandler {
	h := &TerminalHandler{
		journal:           journal,
		sessions:          sessions,
		logoSessions:      make(map[string]*logoSession),
		stepLimit:         configuration.GetInt("Interpreter", "step_limit", 100000),
		clientManager:     NewClientManager(),
		securityValidator: NewSecurityValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if checkOrigin(origin, configuration.GetStringList("WebSocket", "allowed_origins")) {
					return true
				}
				logger.SecurityWarn("WebSocket request from disallowed origin rejected: %q", origin)
				return false
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleWebSocket upgrades the request and attaches it to a session. A
// valid session token resumes that session; without one a new session is
// created and its token sent to the client.
func (h *TerminalHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ipAddress := auth.GetClientIP(r)
	logger.WebSocketDebug("Connection attempt from %s (Origin: %s)", ipAddress, r.Header.Get("Origin"))

	if err := h.clientManager.CheckRateLimit(ipAddress); err != nil {
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	sessionID, token, err := h.resolveSession(r)
	if err != nil {
		logger.AuthWarn("WebSocket authentication failed for %s: %v", ipAddress, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.securityValidator.ValidateSessionID(sessionID); err != nil {
		logger.SecurityWarn("Rejected session from %s: %v", ipAddress, err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if err := h.sessions.RegisterSession(sessionID, ipAddress); err != nil {
		logger.SessionWarn("Session limit for %s: %v", ipAddress, err)
		http.Error(w, "Server overloaded", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WebSocketError("WebSocket upgrade failed for %s: %v", ipAddress, err)
		h.sessions.Detach(sessionID)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		conn:      conn,
		send:      make(chan []byte, getMaxChannelBuffer()),
		handler:   h,
		ipAddress: ipAddress,
		sessionID: sessionID,
		ctx:       ctx,
		cancel:    cancel,
		shutdown:  make(chan struct{}),
	}

	if err := h.journal.TouchSession(ctx, sessionID, ipAddress); err != nil {
		logger.Error(logger.AreaDatabase, "Failed to journal session %s: %v", sessionID, err)
	}

	if previous := h.clientManager.AddClient(sessionID, client); previous != nil {
		logger.WebSocketInfo("Session %s reconnected, closing previous connection", sessionID)
		go h.cleanupClient(previous)
	}

	go client.writePump()
	go client.readPump()

	logger.WebSocketInfo("Client connected: session %s (IP: %s)", sessionID, ipAddress)

	client.sendMessage(shared.Message{Type: shared.MessageTypeSession, SessionID: sessionID, Token: token})
	client.sendMessage(shared.Message{Type: shared.MessageTypeText, Content: "Welcome to RetroTurtle"})
	h.syncSession(client)
}

// resolveSession returns the session named by the request token or a new
// session with a freshly issued token.
func (h *TerminalHandler) resolveSession(r *http.Request) (sessionID, token string, err error) {
	tokenString, err := auth.ExtractTokenFromRequest(r)
	if errors.Is(err, auth.ErrNoToken) {
		sessionID = uuid.New().String()
		token, err = auth.GenerateSessionToken(sessionID)
		if err != nil {
			return "", "", fmt.Errorf("issue token: %w", err)
		}
		return sessionID, token, nil
	}
	if err != nil {
		return "", "", err
	}

	claims, err := auth.ValidateSessionToken(tokenString)
	if err != nil {
		return "", "", err
	}
	return claims.SessionID, "", nil
}

// session returns the interpreter state for sessionID, creating it on
// first use.
func (h *TerminalHandler) session(sessionID string) *logoSession {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	s, ok := h.logoSessions[sessionID]
	if !ok {
		s = &logoSession{interp: h.newInterpreter(sessionID)}
		h.logoSessions[sessionID] = s
	}
	return s
}

func (h *TerminalHandler) newInterpreter(sessionID string) *logo.Interpreter {
	in := logo.New(logo.WithStepLimit(h.stepLimit))
	bridge(in, func(msg shared.Message) { h.deliver(sessionID, msg) })
	return in
}

// deliver sends msg to whichever client is attached to sessionID.
func (h *TerminalHandler) deliver(sessionID string, msg shared.Message) {
	err := h.clientManager.SendToClient(sessionID, msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrClientNotFound), errors.Is(err, ErrClientClosed):
		logger.WebSocketDebug("No client for session %s, message dropped", sessionID)
	default:
		logger.WebSocketWarn("Delivery to session %s failed: %v", sessionID, err)
	}
}

func (h *TerminalHandler) handleRequest(c *Client, req TerminalRequest) {
	h.sessions.Touch(c.sessionID)

	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case RequestRun:
		h.runProgram(c, req.Content)
	case RequestExample:
		h.runExample(c, req.Content)
	case RequestReset:
		h.resetSession(c)
	case RequestSync:
		h.syncSession(c)
	case RequestKeepalive:
	default:
		logger.WebSocketDebug("Unknown request %q from session %s", req.Type, c.sessionID)
		c.sendMessage(shared.Message{Type: shared.MessageTypeError, Content: fmt.Sprintf("%v: %q", ErrUnknownRequestType, req.Type)})
	}
}

func (h *TerminalHandler) runExample(c *Client, name string) {
	if h.catalog == nil {
		c.sendMessage(shared.Message{Type: shared.MessageTypeError, Content: "examples are not available"})
		return
	}
	example, ok := h.catalog.Find(strings.TrimSpace(name))
	if !ok {
		c.sendMessage(shared.Message{Type: shared.MessageTypeError, Content: fmt.Sprintf("unknown example %q", name)})
		return
	}
	h.runProgram(c, example.Program)
}

// runProgram runs program on the session interpreter, journals the
// outcome and reports it in a Status message.
func (h *TerminalHandler) runProgram(c *Client, program string) {
	if err := h.securityValidator.ValidateProgram(program); err != nil {
		logger.SecurityWarn("Program from session %s rejected: %v", c.sessionID, err)
		h.reject(c, err)
		return
	}
	if err := h.sessions.AllowRun(c.sessionID); err != nil {
		logger.SessionWarn("Run refused for session %s: %v", c.sessionID, err)
		h.reject(c, err)
		return
	}

	s := h.session(c.sessionID)
	ctx, cancel := h.sessions.RunContext(c.ctx)
	defer cancel()

	s.mu.Lock()
	start := time.Now()
	err := s.interp.RunInputContext(ctx, program)
	steps := s.interp.Steps()
	s.mu.Unlock()
	elapsed := time.Since(start)

	run := &storage.Run{
		SessionID: c.sessionID,
		Program:   program,
		OK:        err == nil,
		Steps:     steps,
		Duration:  elapsed,
	}
	params := map[string]interface{}{
		"ok":         err == nil,
		"steps":      steps,
		"durationMs": float64(elapsed.Microseconds()) / 1000,
	}
	content := "ok"
	if err != nil {
		run.Error = err.Error()
		content = err.Error()
		var le *logo.Error
		if errors.As(err, &le) {
			run.ErrorLine = le.Line
			params["line"] = le.Line
		}
	}

	if jerr := h.journal.RecordRun(context.Background(), run); jerr != nil {
		logger.Error(logger.AreaDatabase, "Failed to journal run for session %s: %v", c.sessionID, jerr)
	}
	logger.Debug(logger.AreaInterpreter, "Session %s ran %d steps in %v (ok=%v)", c.sessionID, steps, elapsed, err == nil)

	c.sendMessage(shared.Message{Type: shared.MessageTypeStatus, Content: content, Params: params})
}

// reject reports a run that never reached the interpreter.
func (h *TerminalHandler) reject(c *Client, err error) {
	c.sendMessage(shared.Message{Type: shared.MessageTypeError, Content: err.Error()})
	c.sendMessage(shared.Message{
		Type:    shared.MessageTypeStatus,
		Content: err.Error(),
		Params:  map[string]interface{}{"ok": false, "steps": 0},
	})
}

// resetSession replaces the interpreter, clearing variables and drawing.
func (h *TerminalHandler) resetSession(c *Client) {
	s := h.session(c.sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interp = h.newInterpreter(c.sessionID)
	h.deliver(c.sessionID, shared.Message{Type: shared.MessageTypeClear})
	s.interp.Turtle().Sync()
	logger.SessionInfo("Session %s reset", c.sessionID)
}

// syncSession re-announces the turtle so the client can redraw it.
func (h *TerminalHandler) syncSession(c *Client) {
	s := h.session(c.sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interp.Turtle().Sync()
}

// cleanupClient releases a client. It is safe to call more than once.
func (h *TerminalHandler) cleanupClient(c *Client) {
	c.closeOnce.Do(func() {
		close(c.shutdown)
		if c.cancel != nil {
			c.cancel()
		}
		h.sessions.Detach(c.sessionID)
		h.clientManager.RemoveClient(c.sessionID, c)
		logger.WebSocketInfo("Client disconnected: session %s (IP: %s)", c.sessionID, c.ipAddress)
	})
}

// CleanupInactive drops sessions idle for longer than maxIdle together
// with their interpreters and returns their ids.
func (h *TerminalHandler) CleanupInactive(maxIdle time.Duration) []string {
	removed := h.sessions.CleanupInactiveSessions(maxIdle)
	h.mutex.Lock()
	for _, id := range removed {
		delete(h.logoSessions, id)
	}
	h.mutex.Unlock()
	h.clientManager.PruneRateLimits()
	return removed
}

// Stats summarises sessions and connections.
func (h *TerminalHandler) Stats() map[string]interface{} {
	stats := h.sessions.GetSessionStats()
	h.mutex.Lock()
	stats["interpreters"] = len(h.logoSessions)
	h.mutex.Unlock()
	stats["connected_clients"] = h.clientManager.GetClientCount()
	return stats
}

// Shutdown closes every connected client.
func (h *TerminalHandler) Shutdown() {
	for _, c := range h.clientManager.Clients() {
		h.cleanupClient(c)
	}
}
