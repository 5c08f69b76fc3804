package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/stillpoint/mentor-backend/internal/dialogue"
	"github.com/stillpoint/mentor-backend/internal/gateway"
	"github.com/stillpoint/mentor-backend/internal/reply"
	"github.com/stillpoint/mentor-backend/internal/synthesis"
	"github.com/stillpoint/mentor-backend/internal/transcription"
)

func ProvideGenerator(cfg *Config, log *slog.Logger) (reply.Generator, error) {
	if cfg.MockProviders || cfg.GeminiAPIKey == "" {
		if !cfg.MockProviders {
			log.Warn("no Gemini API key, using scripted replies")
		}
		return reply.NewScripted(), nil
	}
	return reply.NewGemini(context.Background(), reply.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, reply.DefaultToolset(), log)
}

func ProvideSynthesizer(cfg *Config, log *slog.Logger) (synthesis.Synthesizer, error) {
	if cfg.MockProviders || cfg.TTSAPIKey == "" {
		if !cfg.MockProviders {
			log.Warn("no TTS API key, using mock synthesis")
		}
		return synthesis.NewMockSynthesizer(), nil
	}
	return synthesis.New(synthesis.Config{
		URL:    cfg.TTSURL,
		APIKey: cfg.TTSAPIKey,
		Voice:  cfg.TTSVoice,
	})
}

// ProvideSessionConfigFactory assembles the per-connection dialogue
// config. The transcriber is per session; generator and synthesizer are
// shared.
func ProvideSessionConfigFactory(
	cfg *Config,
	gen reply.Generator,
	synth synthesis.Synthesizer,
	log *slog.Logger,
) gateway.SessionConfigFactory {
	mockSTT := cfg.MockProviders || cfg.STTAPIKey == ""
	if mockSTT && !cfg.MockProviders {
		log.Warn("no STT API key, using mock transcription")
	}

	return func() dialogue.Config {
		return dialogue.Config{
			NewTranscriber: func(cb transcription.Callbacks) (transcription.Transcriber, error) {
				if mockSTT {
					return transcription.NewMock(nil, cb), nil
				}
				return transcription.New(
					transcription.Config{URL: cfg.STTURL, APIKey: cfg.STTAPIKey},
					transcription.SessionOptions{
						Model:      cfg.STTModel,
						SampleRate: 16000,
						Partials:   true,
					},
					cb,
				)
			},
			Generator:   gen,
			Synthesizer: synth,
			Voice:       cfg.TTSVoice,
			IdleTimeout: cfg.IdleTimeout,
		}
	}
}

func ProvideSessionManager(log *slog.Logger) *dialogue.Manager {
	return dialogue.NewManager(log)
}

var ProvidersModule = fx.Options(
	fx.Provide(
		ProvideGenerator,
		ProvideSynthesizer,
		ProvideSessionConfigFactory,
		ProvideSessionManager,
	),
)
