// Package speech voices guidance advice and chat replies.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm"
)

const DefaultMIMEType = "audio/pcm;rate=24000"

// Preferences reports whether a session wants speech and in which language.
type Preferences func(sessionID string) (enabled bool, language string)

type Config struct {
	Voice    string
	MIMEType string
	Timeout  time.Duration
}

// Dispatcher synthesizes speech for TURN_RESOLVED advice and model chat
// replies. A newer utterance for the same session cancels the older one.
// When synthesis fails the client is told to use its on-device voice.
type Dispatcher struct {
	mu       sync.Mutex
	speaker  llm.Speaker
	emitter  events.Emitter
	logger   logger.ILogger
	prefs    Preferences
	cfg      Config
	inflight map[string]*utterance
	wg       sync.WaitGroup
}

type utterance struct {
	cancel context.CancelFunc
}

func NewDispatcher(cfg Config, speaker llm.Speaker, emitter events.Emitter, log logger.ILogger, prefs Preferences) *Dispatcher {
	if cfg.MIMEType == "" {
		cfg.MIMEType = DefaultMIMEType
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if prefs == nil {
		prefs = func(string) (bool, string) { return true, "" }
	}
	return &Dispatcher{
		speaker:  speaker,
		emitter:  emitter,
		logger:   log,
		prefs:    prefs,
		cfg:      cfg,
		inflight: make(map[string]*utterance),
	}
}

func (d *Dispatcher) Handle(e events.Event) {
	var text string
	switch e.EventType() {
	case events.TypeTurnResolved:
		text, _ = e.Payload()["advice"].(string)
	case events.TypeChatMessageAppended:
		if role, _ := e.Payload()["role"].(string); role != string(llm.RoleModel) {
			return
		}
		text, _ = e.Payload()["text"].(string)
	default:
		return
	}
	if text == "" {
		return
	}

	enabled, language := d.prefs(e.Session())
	if !enabled {
		return
	}
	if lang, ok := e.Payload()["language"].(string); ok && lang != "" {
		language = lang
	}
	d.Speak(e.Session(), text, language)
}

// Speak starts synthesis in the background.
func (d *Dispatcher) Speak(sessionID, text, language string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	u := &utterance{cancel: cancel}

	d.mu.Lock()
	if prev, ok := d.inflight[sessionID]; ok {
		prev.cancel()
	}
	d.inflight[sessionID] = u
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.release(sessionID, u)

		audio, err := d.speaker.Synthesize(ctx, text, language, d.cfg.Voice)
		if errors.Is(ctx.Err(), context.Canceled) {
			// superseded by a newer utterance
			return
		}
		if err != nil || len(audio) == 0 {
			d.logger.Warn("Speech", "Synthesis failed, falling back to device voice", map[string]interface{}{
				"session_id": sessionID,
				"error":      errString(err),
			})
			d.emitter.Emit(events.New(events.TypeSpeechFallback, sessionID, map[string]interface{}{
				"text":     text,
				"language": language,
			}))
			return
		}
		d.emitter.Emit(events.New(events.TypeSpeechReady, sessionID, map[string]interface{}{
			"text":  text,
			"mime":  d.cfg.MIMEType,
			"audio": base64.StdEncoding.EncodeToString(audio),
		}))
	}()
}

func (d *Dispatcher) release(sessionID string, u *utterance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u.cancel()
	if d.inflight[sessionID] == u {
		delete(d.inflight, sessionID)
	}
}

// Cancel stops any utterance in flight for the session.
func (d *Dispatcher) Cancel(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.inflight[sessionID]; ok {
		u.cancel()
		delete(d.inflight, sessionID)
	}
}

// Wait blocks until every started synthesis has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func errString(err error) string {
	if err == nil {
		return "empty audio"
	}
	return err.Error()
}
