package terminal

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/logger"
	"github.com/antibyte/retroturtle/pkg/shared"

	"github.com/gorilla/websocket"
)

// Connection tuning, see the [Network] section of settings.cfg.

func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 60*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 64) * 1024)
}

func getMaxChannelBuffer() int {
	return configuration.GetInt("Network", "max_channel_buffer", 1024)
}

var defaultAllowedOrigins = []string{"localhost", "127.0.0.1"}

// checkOrigin accepts browser origins whose host, or full origin, is
// listed in [WebSocket] allowed_origins.
func checkOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	if len(allowed) == 0 {
		allowed = defaultAllowedOrigins
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, entry := range allowed {
		if entry == "*" || strings.EqualFold(entry, origin) || strings.EqualFold(entry, u.Hostname()) {
			return true
		}
	}
	return false
}

// readPump reads requests until the connection fails. Runs execute on
// this goroutine, so a client has at most one run in flight.
func (c *Client) readPump() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(logger.AreaWebSocket, "Panic in readPump for session %s: %v", c.sessionID, r)
		}
		c.handler.cleanupClient(c)
	}()

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				logger.WebSocketWarn("Unexpected close for session %s: %v", c.sessionID, err)
			} else {
				logger.WebSocketDebug("Connection closed for session %s: %v", c.sessionID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		// any traffic proves the peer is alive
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))

		var req TerminalRequest
		if err := json.Unmarshal(message, &req); err != nil {
			logger.SecurityWarn("Malformed request from %s: %v", c.ipAddress, err)
			c.sendMessage(shared.Message{Type: shared.MessageTypeError, Content: "malformed request"})
			continue
		}
		c.handler.handleRequest(c, req)
	}
}

// writePump writes queued messages and pings until the client shuts down.
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.WebSocketDebug("Write failed for session %s: %v", c.sessionID, err)
				go c.handler.cleanupClient(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WebSocketWarn("Failed to send ping to session %s: %v", c.sessionID, err)
				go c.handler.cleanupClient(c)
				return
			}
		case <-c.shutdown:
			c.drain()
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes whatever is still queued when the client shuts down.
func (c *Client) drain() {
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// sendMessage marshals msg and queues it.
func (c *Client) sendMessage(msg shared.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error(logger.AreaWebSocket, "Error marshalling message: %v", err)
		return
	}
	if err := c.Send(data); err != nil && !errors.Is(err, ErrClientClosed) {
		logger.WebSocketWarn("Dropping message for session %s: %v", c.sessionID, err)
	}
}
