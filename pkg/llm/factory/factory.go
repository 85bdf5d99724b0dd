package factory

import (
	"context"
	"fmt"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/live"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/llm/gemini"
	"mindful-be/pkg/llm/mock"
	"mindful-be/pkg/locale"
)

type Settings struct {
	Provider      string // "gemini" or "mock"
	APIKey        string
	GuidanceModel string
	ChatModel     string
	SearchModel   string
	SpeechModel   string
	SpeechVoice   string
	LiveModel     string
	LiveVoice     string
	LiveURL       string
	// Fallback wraps the guide so provider failures yield the localized
	// fallback reply.
	Fallback bool
}

// Providers bundles every model-facing dependency of a companion session.
type Providers struct {
	Guide   llm.Guide
	Chat    llm.ChatProvider
	Speaker llm.Speaker
	Live    live.Dialer
}

func NewProviders(ctx context.Context, s Settings, catalog *locale.Catalog, log logger.ILogger) (Providers, error) {
	var p Providers

	switch s.Provider {
	case "", "gemini":
		g, err := gemini.New(ctx, s.APIKey, gemini.Config{
			GuidanceModel: s.GuidanceModel,
			ChatModel:     s.ChatModel,
			SearchModel:   s.SearchModel,
			SpeechModel:   s.SpeechModel,
			SpeechVoice:   s.SpeechVoice,
		}, catalog)
		if err != nil {
			return Providers{}, err
		}
		p = Providers{
			Guide:   g,
			Chat:    g,
			Speaker: g,
			Live: gemini.NewLiveDialer(gemini.LiveConfig{
				URL:    s.LiveURL,
				APIKey: s.APIKey,
				Model:  s.LiveModel,
				Voice:  s.LiveVoice,
			}, log),
		}
	case "mock":
		m := mock.New()
		m.Delay = 300 * time.Millisecond
		p = Providers{Guide: m, Chat: m, Speaker: m, Live: &mock.LiveDialer{}}
	default:
		return Providers{}, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
	}

	if s.Fallback {
		p.Guide = llm.NewFallbackGuide(p.Guide, catalog, func(err error) {
			log.Warn("GuidanceProvider", "Guidance request failed, serving fallback reply", map[string]interface{}{
				"provider": s.Provider,
				"error":    err.Error(),
			})
		})
	}
	return p, nil
}
