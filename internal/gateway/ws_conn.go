package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stillpoint/mentor-backend/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type outbound struct {
	event *transport.ServerEvent
	audio []byte
}

// WSConn adapts a gorilla websocket to the session's transport interface:
// binary frames in are microphone audio, text frames in are control
// messages, and everything out funnels through a single write pump.
type WSConn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	send     chan outbound
	audioIn  chan []byte
	controls chan transport.ControlMessage
	done     chan struct{}

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
}

func NewWSConn(ws *websocket.Conn, logger *slog.Logger) *WSConn {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSConn{
		ws:       ws,
		logger:   logger,
		send:     make(chan outbound, 256),
		audioIn:  make(chan []byte, 128),
		controls: make(chan transport.ControlMessage, 64),
		done:     make(chan struct{}),
	}
}

func (c *WSConn) Send(_ context.Context, event transport.ServerEvent) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	select {
	case c.send <- outbound{event: &event}:
		return nil
	case <-c.done:
		return nil
	default:
		c.logger.Warn("send buffer full, dropping event", "type", event.Type)
		return nil
	}
}

func (c *WSConn) SendAudio(_ context.Context, chunk transport.AudioChunk) error {
	if len(chunk.Data) == 0 {
		return nil
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	select {
	case c.send <- outbound{audio: chunk.Data}:
		return nil
	case <-c.done:
		return nil
	default:
		c.logger.Warn("send buffer full, dropping audio chunk", "seq", chunk.Seq)
		return nil
	}
}

func (c *WSConn) AudioIn() <-chan []byte {
	return c.audioIn
}

func (c *WSConn) Controls() <-chan transport.ControlMessage {
	return c.controls
}

func (c *WSConn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// readPump blocks until the socket dies. Incoming channels are closed on
// the way out so a reading session observes the disconnect.
func (c *WSConn) readPump() {
	defer func() {
		close(c.audioIn)
		close(c.controls)
		_ = c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			select {
			case c.audioIn <- data:
			case <-c.done:
				return
			default:
				c.logger.Warn("audio buffer full, dropping frame")
			}

		case websocket.TextMessage:
			var msg transport.ControlMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
				// Malformed control frames are ignored, not fatal.
				c.logger.Debug("ignoring malformed control frame", "error", err)
				continue
			}
			msg.Raw = json.RawMessage(data)

			select {
			case c.controls <- msg:
			case <-c.done:
				return
			default:
				c.logger.Warn("control buffer full, dropping message", "type", msg.Type)
			}
		}
	}
}

func (c *WSConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case out := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			if out.event != nil {
				data, err := json.Marshal(out.event)
				if err != nil {
					c.logger.Error("failed to marshal event", "error", err)
					continue
				}
				if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
					c.logger.Error("websocket write error", "error", err)
					return
				}
				continue
			}

			if err := c.ws.WriteMessage(websocket.BinaryMessage, out.audio); err != nil {
				c.logger.Error("websocket audio write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
