package reply

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultModel    = "gemini-2.0-flash"
	generateTimeout = 30 * time.Second
	maxReplyTokens  = 256
)

// toolOnlyLeadIn is spoken when the model answers with only a tool call.
// The final event always carries text, and the reply is what reaches TTS.
const toolOnlyLeadIn = "Okay - let's try this together."

func finalText(full string) string {
	if text := strings.TrimSpace(full); text != "" {
		return text
	}
	return toolOnlyLeadIn
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini streams replies from the Gemini API, honoring the mentor system
// prompt and the declared tool capabilities. Tool calls proposed by the
// model are validated against their schemas before being surfaced; a call
// that fails validation is dropped, never forwarded.
type Gemini struct {
	client *genai.Client
	model  string
	tools  *Toolset
	log    *slog.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig, tools *Toolset, log *slog.Logger) (*Gemini, error) {
	if log == nil {
		log = slog.Default()
	}
	if tools == nil {
		tools = DefaultToolset()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Gemini{
		client: client,
		model:  model,
		tools:  tools,
		log:    log.With("component", "gemini_generator"),
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (<-chan Event, error) {
	contents := buildContents(req)

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: SystemPrompt}},
		},
		Tools:           g.tools.Declarations(),
		MaxOutputTokens: maxReplyTokens,
		Temperature:     genai.Ptr[float32](0.7),
	}

	ch := make(chan Event)
	go func() {
		defer close(ch)

		genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
		defer cancel()

		var full strings.Builder
		for resp, err := range g.client.Models.GenerateContentStream(genCtx, g.model, contents, config) {
			if err != nil {
				g.log.Error("generation stream failed", "error", err)
				emit(ctx, ch, Event{Type: EventError, Err: err})
				return
			}

			for _, part := range responseParts(resp) {
				if part.Text != "" {
					full.WriteString(part.Text)
					if !emit(ctx, ch, Event{Type: EventToken, Token: part.Text}) {
						return
					}
				}
				if part.FunctionCall != nil {
					g.forwardToolCall(ctx, ch, part.FunctionCall)
				}
			}
		}

		text := finalText(full.String())
		if strings.TrimSpace(full.String()) == "" {
			if !emit(ctx, ch, Event{Type: EventToken, Token: text}) {
				return
			}
		}
		emit(ctx, ch, Event{Type: EventFinal, Text: text})
	}()

	return ch, nil
}

func (g *Gemini) forwardToolCall(ctx context.Context, ch chan<- Event, call *genai.FunctionCall) {
	args, err := g.tools.Validate(call.Name, call.Args)
	if err != nil {
		g.log.Warn("dropping tool call", "tool", call.Name, "error", err)
		return
	}
	emit(ctx, ch, Event{Type: EventTool, Tool: &ToolCall{Name: call.Name, Args: args}})
}

func responseParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

// buildContents replays the session history followed by the new utterance,
// so replayed histories reproduce the same persona framing.
func buildContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.RoleUser
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Text}},
		})
	}

	utterance := req.Utterance
	if strings.TrimSpace(utterance) == "" {
		utterance = "(the user stayed silent)"
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: utterance}},
	})

	return contents
}
