package reply

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Scripted generates deterministic mentor replies without a provider, for
// demo mode and tests. Tokens are emitted word by word with a small pause
// so interruption mid-stream is observable. The reply framing mirrors the
// system prompt: validate first, stay brief, surface crisis resources, and
// occasionally suggest an in-app activity via a tool call.
type Scripted struct {
	TokenDelay time.Duration
	Tools      *Toolset

	// Responses, when set, are consumed in order instead of the derived
	// reply. Useful for driving exact turn content in tests.
	Responses []string

	// Fail forces an error event, exercising the fallback path.
	Fail error

	// One instance serves every session in demo mode, and each Generate
	// streams from its own goroutine.
	mu   sync.Mutex
	turn int
}

func NewScripted() *Scripted {
	return &Scripted{
		TokenDelay: 20 * time.Millisecond,
		Tools:      DefaultToolset(),
	}
}

func (s *Scripted) Generate(ctx context.Context, req Request) (<-chan Event, error) {
	ch := make(chan Event)
	go func() {
		defer close(ch)

		if s.Fail != nil {
			emit(ctx, ch, Event{Type: EventError, Err: s.Fail})
			return
		}

		text, tool := s.compose(req.Utterance)

		delay := s.TokenDelay
		var ticker *time.Ticker
		if delay > 0 {
			ticker = time.NewTicker(delay)
			defer ticker.Stop()
		}

		for _, word := range strings.Fields(text) {
			if ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
			if !emit(ctx, ch, Event{Type: EventToken, Token: word + " "}) {
				return
			}
		}

		if tool != nil {
			if !emit(ctx, ch, Event{Type: EventTool, Tool: tool}) {
				return
			}
		}

		emit(ctx, ch, Event{Type: EventFinal, Text: text})
	}()
	return ch, nil
}

func (s *Scripted) compose(utterance string) (string, *ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Responses) > 0 {
		text := s.Responses[0]
		s.Responses = s.Responses[1:]
		return text, nil
	}

	if DetectCrisis(utterance) {
		return crisisFallback, nil
	}

	lower := strings.ToLower(utterance)
	s.turn++

	switch {
	case strings.TrimSpace(utterance) == "":
		return "I'm here whenever you're ready. No rush at all - " +
			"even sitting together quietly counts.", nil
	case strings.Contains(lower, "breath") || strings.Contains(lower, "anxious") || strings.Contains(lower, "panic"):
		tool := s.toolCall("breathing.start", map[string]any{"mode": "box", "duration_sec": 120.0})
		return "That sounds really overwhelming, and it makes sense your body is " +
			"reacting. Let's slow things down together with a short breathing " +
			"exercise - I'll start one for you now.", tool
	case strings.Contains(lower, "focus") || strings.Contains(lower, "distract"):
		tool := s.toolCall("focus.start", map[string]any{"minutes": 10.0})
		return "It's hard to settle when your mind keeps pulling away. A short " +
			"focus sprint can help - ten minutes, just one small thing.", tool
	case strings.Contains(lower, "journal") || strings.Contains(lower, "write"):
		tool := s.toolCall("journaling.prompt", map[string]any{"topic": "what today brought up"})
		return "Putting it into words can take some of its weight. I've opened " +
			"your journal with a gentle prompt if you'd like to try.", tool
	default:
		return "Thank you for telling me that. What you're feeling is real and " +
			"it matters. I'm listening - tell me a little more about what's " +
			"underneath it, if you can.", nil
	}
}

func (s *Scripted) toolCall(name string, args map[string]any) *ToolCall {
	if s.Tools == nil {
		return nil
	}
	raw, err := s.Tools.Validate(name, args)
	if err != nil {
		return nil
	}
	return &ToolCall{Name: name, Args: raw}
}
