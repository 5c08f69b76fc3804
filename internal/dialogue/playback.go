package dialogue

import (
	"context"
	"log/slog"

	"github.com/stillpoint/mentor-backend/internal/synthesis"
	"github.com/stillpoint/mentor-backend/internal/transport"
)

type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeStopped
	OutcomeError
)

// Coordinator converts one finalized reply into a sequence-numbered chunk
// stream on the client connection. Cancellation is checked before every
// chunk: nothing is emitted once the cancel channel is observed closed.
type Coordinator struct {
	synth  synthesis.Synthesizer
	voice  string
	speed  float32
	format string
	log    *slog.Logger
}

type CoordinatorConfig struct {
	Synth  synthesis.Synthesizer
	Voice  string
	Speed  float32
	Format string
	Log    *slog.Logger
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		synth:  cfg.Synth,
		voice:  cfg.Voice,
		speed:  cfg.Speed,
		format: cfg.Format,
		log:    log,
	}
}

// Play blocks until the stream completes, is canceled, or fails. The
// caller reports tts.done / tts.stop based on the outcome; Play itself
// only emits tts.chunk frames.
func (c *Coordinator) Play(ctx context.Context, conn transport.Connection, text string, cancel <-chan struct{}) Outcome {
	seq := 0
	var streamErr error

	req := synthesis.Request{
		Text:   text,
		Voice:  c.voice,
		Speed:  c.speed,
		Format: c.format,
		Cancel: cancel,
	}

	cb := synthesis.Callbacks{
		OnAudio: func(data []byte, format string, sampleRate uint32) {
			if stopRequested(cancel) || ctx.Err() != nil {
				return
			}
			if err := conn.Send(ctx, transport.ChunkEvent(seq)); err != nil {
				c.log.Error("failed to send chunk event", "seq", seq, "error", err)
			}
			if len(data) > 0 {
				chunk := transport.AudioChunk{Seq: seq, Data: data, Format: format, SampleRate: sampleRate}
				if err := conn.SendAudio(ctx, chunk); err != nil {
					c.log.Error("failed to send audio", "seq", seq, "error", err)
				}
			}
			seq++
		},
		OnError: func(err error) {
			streamErr = err
		},
	}

	err := c.synth.Synthesize(ctx, req, cb)

	switch {
	case stopRequested(cancel) || ctx.Err() != nil:
		return OutcomeStopped
	case err != nil || streamErr != nil:
		if err == nil {
			err = streamErr
		}
		c.log.Error("playback failed", "error", err)
		return OutcomeError
	default:
		return OutcomeDone
	}
}

func stopRequested(ch <-chan struct{}) bool {
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
