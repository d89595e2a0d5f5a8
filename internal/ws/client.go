// internal/ws/client.go — one websocket connection.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout  = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 64
)

// client pairs a websocket connection with its player and room
// identity. Outbound frames go through a buffered queue drained by
// writePump; a slow consumer fills the queue and is dropped rather than
// blocking the room's broadcast path.
type client struct {
	conn     *websocket.Conn
	roomID   uuid.UUID
	playerID uuid.UUID
	name     string

	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}

	logger *logrus.Entry
}

func newClient(conn *websocket.Conn, roomID, playerID uuid.UUID, name string, logger *logrus.Logger) *client {
	return &client{
		conn:     conn,
		roomID:   roomID,
		playerID: playerID,
		name:     name,
		send:     make(chan []byte, sendQueueSize),
		closed:   make(chan struct{}),
		logger: logger.WithFields(logrus.Fields{
			"room_id":   roomID.String(),
			"player_id": playerID.String(),
		}),
	}
}

// enqueue queues a frame for delivery. Never blocks: a full queue means
// the consumer has stalled, so the connection is closed instead.
func (c *client) enqueue(b []byte) {
	select {
	case <-c.closed:
	case c.send <- b:
	default:
		c.logger.Warn("send queue full, dropping connection")
		c.close("send queue overflow")
	}
}

// close tears the connection down exactly once.
func (c *client) close(reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close(websocket.StatusNormalClosure, reason)
	})
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case b := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				c.logger.WithError(err).Debug("write failed, closing connection")
				c.close("write failure")
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.logger.WithError(err).Debug("ping failed, closing connection")
				c.close("ping failure")
				return
			}
		}
	}
}
