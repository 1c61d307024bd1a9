package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds configuration for websocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// connection wraps one player's websocket with buffered writes and
// ping/pong liveness handling.
type connection struct {
	id       string
	playerID string
	conn     *websocket.Conn
	send     chan []byte
	cfg      ConnectionConfig
	inbound  chan Message
}

func newConnection(id, playerID string, ws *websocket.Conn, cfg ConnectionConfig) *connection {
	return &connection{
		id:       id,
		playerID: playerID,
		conn:     ws,
		send:     make(chan []byte, 256),
		cfg:      cfg,
		inbound:  make(chan Message, 16),
	}
}

// enqueue hands a frame to the write pump. A full buffer drops the frame;
// view snapshots are superseded by the next one anyway.
func (c *connection) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		log.Warn().
			Str("connection_id", c.id).
			Str("player_id", c.playerID).
			Msg("connection send buffer full, dropping frame")
	}
}

// writePump handles sending messages to the websocket connection.
func (c *connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump decodes inbound frames onto the session's message channel
// until the peer disconnects.
func (c *connection) readPump() {
	defer func() {
		close(c.inbound)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected websocket close error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		var msg Message
		if err := decodeMessage(raw, &msg); err != nil {
			log.Debug().
				Err(err).
				Str("connection_id", c.id).
				Msg("discarding malformed client frame")
			continue
		}
		c.inbound <- msg
	}
}
