package presence

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vasu1712/chatsync/internal/events"
	"github.com/Vasu1712/chatsync/internal/ws"
)

// conn pumps one websocket. The hub owns client.Send; frames addressed to
// this connection alone go through direct.
type conn struct {
	h      *Handler
	client *ws.Client
	direct chan []byte
	done   chan struct{}
}

func (c *conn) publish(topic string, ev events.Event) {
	frame, err := events.Encode(ev)
	if err != nil {
		c.h.Log.Error("encode_failed", "type", string(ev.Type()), "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := c.h.Hub.Publish(ctx, topic, frame); err != nil {
		c.h.Log.Warn("publish_failed", "topic", topic, "error", err)
	}
}

func (c *conn) reply(ev events.Event) {
	frame, err := events.Encode(ev)
	if err != nil {
		c.h.Log.Error("encode_failed", "type", string(ev.Type()), "error", err)
		return
	}
	select {
	case c.direct <- frame:
	case <-c.done:
	}
}

func (c *conn) readPump(onFrame func(*conn, events.Event)) {
	defer func() {
		close(c.done)
		c.h.Hub.Unregister(c.client)
		c.client.Conn.Close()
		c.h.Log.Info("ws_disconnected", "user_id", c.client.UserID)
	}()
	c.client.Conn.SetReadLimit(maxFrame)
	_ = c.client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.client.Conn.SetPongHandler(func(string) error {
		return c.client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.h.Log.Warn("ws_read_failed", "user_id", c.client.UserID, "error", err)
			}
			return
		}
		ev, err := events.DecodeOutbound(data)
		if err != nil {
			c.h.Log.Warn("frame_rejected", "user_id", c.client.UserID, "error", err)
			continue
		}
		onFrame(c, ev)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.client.Conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.client.Send:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		case frame := <-c.direct:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) write(kind int, data []byte) error {
	_ = c.client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.client.Conn.WriteMessage(kind, data)
}
