package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stillpoint/mentor-backend/internal/reply"
	"github.com/stillpoint/mentor-backend/internal/shared"
	"github.com/stillpoint/mentor-backend/internal/synthesis"
	"github.com/stillpoint/mentor-backend/internal/transcription"
	"github.com/stillpoint/mentor-backend/internal/transport"
)

const (
	defaultIdleTimeout = 5 * time.Minute
	finalizeWait       = 5 * time.Second
)

type eventKind int

const (
	evPartial eventKind = iota
	evTranscript
	evSTTError
	evGenerate
	evPlayback
)

// event is one item on the session's internal queue. Everything that can
// touch session state funnels through here so the run loop is the only
// goroutine mutating state and history.
type event struct {
	kind    eventKind
	turn    int
	text    string
	err     error
	gen     reply.Event
	outcome Outcome
}

type Config struct {
	// SessionID adopts an externally issued id; empty means a fresh
	// prefixed id is minted for the connection.
	SessionID string

	// NewTranscriber builds the per-session transcriber with callbacks
	// already bound; the session owns and closes the result.
	NewTranscriber func(cb transcription.Callbacks) (transcription.Transcriber, error)

	Generator   reply.Generator
	Synthesizer synthesis.Synthesizer

	Voice       string
	Speed       float32
	Format      string
	IdleTimeout time.Duration

	// OnClose fires exactly once when the session tears down, with the
	// number of history entries accumulated.
	OnClose func(sessionID string, turns int)
}

// Session drives one client's dialogue loop. A single run goroutine owns
// state and turnHistory; generator and playback goroutines feed results
// back through the internal event queue and are cancelled cooperatively
// on barge-in or close.
type Session struct {
	sessionID string

	conn  transport.Connection
	stt   transcription.Transcriber
	gen   reply.Generator
	coord *Coordinator

	machine *Machine
	history []reply.Turn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger

	events      chan event
	idleTimeout time.Duration
	onClose     func(string, int)

	// turn numbers stamp in-flight work; events from a superseded turn
	// are discarded by the loop.
	turn      int
	utterance string

	turnMu     sync.Mutex
	turnCancel context.CancelFunc
	playCancel chan struct{}

	turnCount     atomic.Int64
	droppedFrames atomic.Int64
	closeOnce     sync.Once
}

func New(conn transport.Connection, cfg Config, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer required")
	}
	if cfg.NewTranscriber == nil {
		return nil, fmt.Errorf("transcriber factory required")
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = shared.NewID("sess_")
	}

	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		sessionID:   sessionID,
		conn:        conn,
		gen:         cfg.Generator,
		machine:     NewMachine(),
		ctx:         ctx,
		cancel:      cancel,
		log:         log.With("session_id", sessionID),
		events:      make(chan event, 64),
		idleTimeout: idleTimeout,
		onClose:     cfg.OnClose,
	}

	s.coord = NewCoordinator(CoordinatorConfig{
		Synth:  cfg.Synthesizer,
		Voice:  cfg.Voice,
		Speed:  cfg.Speed,
		Format: cfg.Format,
		Log:    s.log,
	})

	stt, err := cfg.NewTranscriber(transcription.Callbacks{
		OnPartial: func(text string) {
			s.post(event{kind: evPartial, text: text})
		},
		OnError: func(err error) {
			s.post(event{kind: evSTTError, err: err})
		},
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.stt = stt

	return s, nil
}

func (s *Session) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Session) SessionID() string {
	return s.sessionID
}

func (s *Session) State() State {
	return s.machine.State()
}

func (s *Session) TurnCount() int {
	return int(s.turnCount.Load())
}

func (s *Session) DroppedFrames() int {
	return int(s.droppedFrames.Load())
}

func (s *Session) run() {
	defer s.wg.Done()
	defer s.shutdown()

	if err := s.machine.To(StateListening); err != nil {
		s.log.Error("failed to enter listening", "error", err)
		return
	}
	s.send(transport.ReadyEvent())

	idle := time.NewTimer(s.idleTimeout)
	defer idle.Stop()

	audioIn := s.conn.AudioIn()
	controls := s.conn.Controls()

	for {
		select {
		case <-s.ctx.Done():
			return

		case data, ok := <-audioIn:
			if !ok {
				s.log.Debug("audio channel closed")
				return
			}
			resetTimer(idle, s.idleTimeout)
			s.handleAudio(data)

		case msg, ok := <-controls:
			if !ok {
				s.log.Debug("control channel closed")
				return
			}
			resetTimer(idle, s.idleTimeout)
			s.handleControl(msg)

		case evt := <-s.events:
			s.handleEvent(evt)

		case <-idle.C:
			s.log.Info("session idle timeout", "timeout", s.idleTimeout)
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (s *Session) post(evt event) {
	select {
	case s.events <- evt:
	case <-s.ctx.Done():
	}
}

func (s *Session) handleAudio(data []byte) {
	if !s.machine.Is(StateListening) {
		// Mid-turn audio is dropped, never buffered or treated as an
		// implicit barge-in; the client interrupts via barge.in.
		s.droppedFrames.Add(1)
		s.log.Debug("dropping mid-turn audio frame", "state", s.machine.State())
		return
	}
	if err := s.stt.SendAudio(data); err != nil {
		s.log.Error("failed to forward audio to STT", "error", err)
	}
}

func (s *Session) handleControl(msg transport.ControlMessage) {
	switch msg.Type {
	case transport.ControlEndTurn:
		s.onEndTurn()
	case transport.ControlBargeIn:
		s.onBargeIn()
	default:
		s.log.Debug("ignoring unknown control message", "type", msg.Type)
	}
}

func (s *Session) onEndTurn() {
	if !s.machine.Is(StateListening) {
		s.log.Debug("end of turn ignored", "state", s.machine.State())
		return
	}
	if err := s.machine.To(StateGenerating); err != nil {
		s.log.Error("transition failed", "error", err)
		return
	}

	s.turn++
	turn := s.turn

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, finalizeWait)
		defer cancel()
		text, err := s.stt.Finalize(ctx)
		if err != nil {
			s.post(event{kind: evSTTError, turn: turn, err: err})
			return
		}
		s.post(event{kind: evTranscript, turn: turn, text: text})
	}()
}

func (s *Session) onBargeIn() {
	switch {
	case s.machine.Is(StateGenerating):
		s.cancelTurn()
		s.turn++
		s.send(transport.StopEvent())
		if err := s.machine.To(StateListening); err != nil {
			s.log.Error("transition failed", "error", err)
		}
	case s.machine.Is(StateSpeaking):
		if err := s.machine.To(StateInterrupted); err != nil {
			s.log.Error("transition failed", "error", err)
			return
		}
		s.cancelTurn()
		// tts.stop is deferred until the playback goroutine confirms it
		// has stopped, so no chunk can trail the acknowledgment.
	default:
		s.log.Debug("barge-in ignored", "state", s.machine.State())
	}
}

func (s *Session) handleEvent(evt event) {
	switch evt.kind {
	case evPartial:
		if s.machine.Is(StateListening) {
			s.send(transport.PartialTranscriptEvent(evt.text))
		}

	case evTranscript:
		if evt.turn != s.turn || !s.machine.Is(StateGenerating) {
			return
		}
		s.utterance = evt.text
		historyBefore := append([]reply.Turn(nil), s.history...)
		s.appendTurn(reply.RoleUser, evt.text)
		s.startGeneration(historyBefore, evt.text)

	case evSTTError:
		s.log.Error("STT failure", "error", evt.err)
		s.send(transport.ErrorEvent("stt", "we couldn't catch that, please try again"))
		if evt.turn == s.turn && s.machine.Is(StateGenerating) {
			if err := s.machine.To(StateListening); err != nil {
				s.log.Error("transition failed", "error", err)
			}
		}

	case evGenerate:
		if evt.turn != s.turn {
			return
		}
		s.handleGenerate(evt.gen)

	case evPlayback:
		if evt.turn != s.turn {
			return
		}
		s.handlePlayback(evt.outcome)
	}
}

func (s *Session) handleGenerate(evt reply.Event) {
	if !s.machine.Is(StateGenerating) {
		return
	}

	switch evt.Type {
	case reply.EventToken:
		s.send(transport.TokenEvent(evt.Token))
	case reply.EventTool:
		s.send(transport.ToolEvent(evt.Tool.Name, evt.Tool.Args))
	case reply.EventFinal:
		s.finishGeneration(evt.Text)
	case reply.EventError:
		s.log.Warn("reply generation failed, using fallback", "error", evt.Err)
		s.finishGeneration(reply.FallbackText(s.utterance))
	}
}

// finishGeneration records the assistant turn and hands the reply to the
// playback coordinator.
func (s *Session) finishGeneration(text string) {
	s.appendTurn(reply.RoleAssistant, text)
	s.send(transport.FinalEvent(text))

	if err := s.machine.To(StateSpeaking); err != nil {
		s.log.Error("transition failed", "error", err)
		return
	}
	s.startPlayback(text)
}

func (s *Session) startGeneration(history []reply.Turn, utterance string) {
	turnCtx, cancel := context.WithCancel(s.ctx)
	s.turnMu.Lock()
	s.turnCancel = cancel
	s.turnMu.Unlock()

	turn := s.turn
	go func() {
		ch, err := s.gen.Generate(turnCtx, reply.Request{History: history, Utterance: utterance})
		if err != nil {
			s.post(event{kind: evGenerate, turn: turn, gen: reply.Event{Type: reply.EventError, Err: err}})
			return
		}
		for evt := range ch {
			s.post(event{kind: evGenerate, turn: turn, gen: evt})
		}
	}()
}

func (s *Session) startPlayback(text string) {
	playCancel := make(chan struct{})
	s.turnMu.Lock()
	s.playCancel = playCancel
	s.turnMu.Unlock()

	turn := s.turn
	go func() {
		outcome := s.coord.Play(s.ctx, s.conn, text, playCancel)
		s.post(event{kind: evPlayback, turn: turn, outcome: outcome})
	}()
}

func (s *Session) handlePlayback(outcome Outcome) {
	switch s.machine.State() {
	case StateSpeaking:
		if outcome == OutcomeError {
			s.send(transport.ErrorEvent("tts", "playback had trouble, let's keep going"))
		}
		s.send(transport.DoneEvent())
		if err := s.machine.To(StateListening); err != nil {
			s.log.Error("transition failed", "error", err)
		}
	case StateInterrupted:
		s.send(transport.StopEvent())
		s.turn++
		if err := s.machine.To(StateListening); err != nil {
			s.log.Error("transition failed", "error", err)
		}
	}

	s.turnMu.Lock()
	s.playCancel = nil
	s.turnMu.Unlock()
}

func (s *Session) appendTurn(role reply.Role, text string) {
	s.history = append(s.history, reply.Turn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
	s.turnCount.Store(int64(len(s.history)))
}

func (s *Session) cancelTurn() {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
	if s.playCancel != nil {
		close(s.playCancel)
		s.playCancel = nil
	}
}

func (s *Session) send(evt transport.ServerEvent) {
	if err := s.conn.Send(s.ctx, evt); err != nil {
		s.log.Error("failed to send event", "type", evt.Type, "error", err)
	}
}

// shutdown releases resources exactly once. Safe to call from the run
// goroutine; Close adds the wait.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		_ = s.machine.To(StateClosed)
		s.cancelTurn()
		s.cancel()

		if err := s.stt.Close(); err != nil {
			s.log.Error("failed to close STT", "error", err)
		}
		if err := s.conn.Close(); err != nil {
			s.log.Error("failed to close connection", "error", err)
		}

		if s.onClose != nil {
			s.onClose(s.sessionID, s.TurnCount())
		}

		s.log.Info("session closed", "turns", s.TurnCount(), "dropped_frames", s.DroppedFrames())
	})
}

func (s *Session) Close() error {
	s.shutdown()
	s.wg.Wait()
	return nil
}
