package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stillpoint/mentor-backend/internal/shared"
)

type reconnectState int

const (
	reconnectIdle reconnectState = iota
	reconnectInProgress

	writeWait       = 5 * time.Second
	finalizeTimeout = 3 * time.Second
)

// Client streams audio to a Deepgram-style realtime transcription endpoint
// over WebSocket. Interim results fire Callbacks.OnPartial; finalized
// segments accumulate until Finalize drains them.
type Client struct {
	url    string
	apiKey string
	opts   SessionOptions
	cb     Callbacks

	conn *websocket.Conn
	mu   sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	readyCh chan struct{}

	backoff        shared.BackoffConfig
	reconnectState reconnectState
	reconnectCh    chan error

	segMu    sync.Mutex
	segments []string
	finalCh  chan string
}

type serverResult struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
}

func New(cfg Config, opts SessionOptions, cb Callbacks) (*Client, error) {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		url:            cfg.URL,
		apiKey:         cfg.APIKey,
		opts:           opts,
		cb:             cb,
		ctx:            ctx,
		cancel:         cancel,
		readyCh:        make(chan struct{}),
		backoff:        cfg.Backoff.Normalize(),
		reconnectState: reconnectIdle,
		reconnectCh:    make(chan error, 1),
		finalCh:        make(chan string, 1),
	}

	if err := c.connectAndStart(); err != nil {
		cancel()
		return nil, err
	}

	return c, nil
}

func (c *Client) connectAndStart() error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("parse STT url: %w", err)
	}

	q := u.Query()
	if c.opts.Model != "" {
		q.Set("model", c.opts.Model)
	}
	if c.opts.Language != "" {
		q.Set("language", c.opts.Language)
	}
	if c.opts.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(c.opts.SampleRate))
	}
	q.Set("interim_results", strconv.FormatBool(c.opts.Partials))
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Token "+c.apiKey)
	}

	slog.Info("STT connecting", "url", u.Host)
	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, u.String(), header)
	if err != nil {
		slog.Error("STT dial failed", "error", err)
		return fmt.Errorf("dial STT provider: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)

	select {
	case <-c.readyCh:
	default:
		close(c.readyCh)
		if c.cb.OnReady != nil {
			c.cb.OnReady()
		}
	}

	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) SendAudio(data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("STT not connected")
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// Finalize asks the provider to flush the current utterance and returns
// everything finalized since the last call. A provider that never answers
// still yields the accumulated segments after a bounded wait.
func (c *Client) Finalize(ctx context.Context) (string, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return "", fmt.Errorf("STT not connected")
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]string{"type": "Finalize"}); err != nil {
		return "", fmt.Errorf("request finalize: %w", err)
	}

	select {
	case text := <-c.finalCh:
		return text, nil
	case <-time.After(finalizeTimeout):
		return c.drainSegments(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.ctx.Done():
		return "", c.ctx.Err()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var result serverResult
		if err := conn.ReadJSON(&result); err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			if c.cb.OnError != nil {
				c.cb.OnError(fmt.Errorf("STT read: %w", err))
			}
			_ = c.Reconnect()
			return
		}

		switch result.Type {
		case "Results":
			transcript := ""
			if len(result.Channel.Alternatives) > 0 {
				transcript = result.Channel.Alternatives[0].Transcript
			}
			if transcript == "" && !result.FromFinalize {
				continue
			}
			if result.IsFinal {
				c.appendSegment(transcript)
				if result.FromFinalize {
					c.notifyFinal()
				}
			} else if c.cb.OnPartial != nil {
				c.cb.OnPartial(transcript)
			}
		case "Error":
			if c.cb.OnError != nil {
				c.cb.OnError(fmt.Errorf("STT provider error: %s", result.Description))
			}
		}
	}
}

func (c *Client) appendSegment(text string) {
	if text == "" {
		return
	}
	c.segMu.Lock()
	c.segments = append(c.segments, text)
	c.segMu.Unlock()
}

func (c *Client) drainSegments() string {
	c.segMu.Lock()
	defer c.segMu.Unlock()
	text := ""
	for i, s := range c.segments {
		if i > 0 {
			text += " "
		}
		text += s
	}
	c.segments = nil
	return text
}

func (c *Client) notifyFinal() {
	text := c.drainSegments()
	select {
	case c.finalCh <- text:
	default:
	}
}

func (c *Client) Reconnect() error {
	c.mu.Lock()
	if c.reconnectState == reconnectInProgress {
		c.mu.Unlock()
		return nil
	}
	c.reconnectState = reconnectInProgress
	c.reconnectCh = make(chan error, 1)
	c.mu.Unlock()

	go c.reconnectLoop()
	return nil
}

func (c *Client) reconnectLoop() {
	backoff := c.backoff.Initial

	defer func() {
		c.mu.Lock()
		c.reconnectState = reconnectIdle
		c.mu.Unlock()
	}()

	for attempts := 0; attempts < c.backoff.MaxAttempts; attempts++ {
		select {
		case <-c.ctx.Done():
			c.notifyReconnect(c.ctx.Err())
			return
		default:
		}

		if err := c.connectAndStart(); err != nil {
			slog.Warn("STT reconnect attempt failed",
				"attempt", attempts+1,
				"max_attempts", c.backoff.MaxAttempts,
				"error", err)

			select {
			case <-c.ctx.Done():
				c.notifyReconnect(c.ctx.Err())
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.backoff.MaxDelay)
			continue
		}

		slog.Info("STT reconnected", "attempts", attempts+1)
		c.notifyReconnect(nil)
		return
	}

	err := fmt.Errorf("reconnect failed after %d attempts", c.backoff.MaxAttempts)
	slog.Error("STT reconnect failed", "error", err)
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
	c.notifyReconnect(err)
}

func (c *Client) notifyReconnect(err error) {
	c.mu.RLock()
	ch := c.reconnectCh
	c.mu.RUnlock()

	select {
	case ch <- err:
	default:
	}
}

func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
