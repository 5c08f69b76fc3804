package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 5 * time.Second
	speakDeadline = 30 * time.Second
)

// Client streams text to a Deepgram-style speech synthesis endpoint over a
// per-request WebSocket and relays audio frames as they arrive. The stream
// is torn down when the request's Cancel channel fires.
type Client struct {
	url    string
	apiKey string
	voice  string

	mu     sync.Mutex
	closed bool
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("synthesis URL required")
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		voice:  cfg.Voice,
	}, nil
}

func (c *Client) Synthesize(ctx context.Context, req Request, cb Callbacks) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("synthesizer closed")
	}
	c.mu.Unlock()

	voice := req.Voice
	if voice == "" {
		voice = c.voice
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("parse TTS url: %w", err)
	}
	q := u.Query()
	if voice != "" {
		q.Set("model", voice)
	}
	if req.Format != "" {
		q.Set("encoding", req.Format)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Token "+c.apiKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("dial TTS provider: %w", err)
	}
	defer conn.Close()

	// Cancellation closes the socket so a blocked read unblocks promptly.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-req.Cancel:
			_ = conn.Close()
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]string{"type": "Speak", "text": req.Text}); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	if err := conn.WriteJSON(map[string]string{"type": "Flush"}); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(speakDeadline))
	for {
		if canceled(req.Cancel) || ctx.Err() != nil {
			return nil
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if canceled(req.Cancel) || ctx.Err() != nil {
				return nil
			}
			if cb.OnError != nil {
				cb.OnError(fmt.Errorf("TTS read: %w", err))
			}
			return err
		}

		switch msgType {
		case websocket.BinaryMessage:
			if cb.OnAudio != nil {
				cb.OnAudio(data, req.Format, 0)
			}
		case websocket.TextMessage:
			if isFlushed(data) {
				if cb.OnDone != nil {
					cb.OnDone()
				}
				return nil
			}
		}
	}
}

func canceled(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func isFlushed(data []byte) bool {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}
	return msg.Type == "Flushed"
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
