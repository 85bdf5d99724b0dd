package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/live"

	"github.com/gorilla/websocket"
)

const (
	DefaultLiveURL   = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultLiveVoice = "Kore"

	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
)

type LiveConfig struct {
	URL              string
	APIKey           string
	Model            string
	Voice            string
	HandshakeTimeout time.Duration
}

// LiveDialer opens realtime voice channels. Each Dial sends the setup
// message and waits for setupComplete before returning.
type LiveDialer struct {
	cfg    LiveConfig
	dialer *websocket.Dialer
	logger logger.ILogger
}

func NewLiveDialer(cfg LiveConfig, log logger.ILogger) *LiveDialer {
	if cfg.URL == "" {
		cfg.URL = DefaultLiveURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLiveModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultLiveVoice
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &LiveDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: log,
	}
}

type liveSetupMessage struct {
	Setup liveSetup `json:"setup"`
}

type liveSetup struct {
	Model             string               `json:"model"`
	GenerationConfig  liveGenerationConfig `json:"generationConfig"`
	SystemInstruction *liveContent         `json:"systemInstruction,omitempty"`
}

type liveGenerationConfig struct {
	ResponseModalities []string          `json:"responseModalities"`
	SpeechConfig       *liveSpeechConfig `json:"speechConfig,omitempty"`
}

type liveSpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type liveContent struct {
	Parts []livePart `json:"parts"`
}

type livePart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *liveBlob `json:"inlineData,omitempty"`
}

type liveBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type liveRealtimeInputMessage struct {
	RealtimeInput struct {
		MediaChunks []liveBlob `json:"mediaChunks"`
	} `json:"realtimeInput"`
}

type liveServerMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *struct {
		ModelTurn    *liveContent `json:"modelTurn,omitempty"`
		TurnComplete bool         `json:"turnComplete,omitempty"`
		Interrupted  bool         `json:"interrupted,omitempty"`
	} `json:"serverContent,omitempty"`
	GoAway *json.RawMessage `json:"goAway,omitempty"`
}

func modelPath(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func (d *LiveDialer) setupMessage(opts live.DialOptions) liveSetupMessage {
	msg := liveSetupMessage{Setup: liveSetup{
		Model: modelPath(d.cfg.Model),
		GenerationConfig: liveGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       &liveSpeechConfig{},
		},
	}}
	msg.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = d.cfg.Voice
	if opts.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &liveContent{Parts: []livePart{{Text: opts.SystemInstruction}}}
	}
	return msg
}

func (d *LiveDialer) Dial(ctx context.Context, opts live.DialOptions) (live.Channel, error) {
	header := http.Header{}
	if d.cfg.APIKey != "" {
		header.Set("x-goog-api-key", d.cfg.APIKey)
	}

	conn, resp, err := d.dialer.DialContext(ctx, d.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("live dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("live dial failed: %w", err)
	}

	deadline := time.Now().Add(d.cfg.HandshakeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(d.setupMessage(opts)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send live setup: %w", err)
	}
	if err := awaitSetupComplete(conn, deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	d.logger.Info("LiveDialer", "Live channel established", map[string]interface{}{
		"model": d.cfg.Model,
		"voice": d.cfg.Voice,
	})
	return &liveChannel{conn: conn, closed: make(chan struct{})}, nil
}

func awaitSetupComplete(conn *websocket.Conn, deadline time.Time) error {
	_ = conn.SetReadDeadline(deadline)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("live setup not acknowledged: %w", err)
		}
		var msg liveServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("invalid live setup response: %w", err)
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

type liveChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	pending []string
	once    sync.Once
	closed  chan struct{}
}

func (c *liveChannel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *liveChannel) SendAudio(ctx context.Context, chunk live.AudioChunk) error {
	if c.isClosed() {
		return live.ErrClosed
	}
	var msg liveRealtimeInputMessage
	msg.RealtimeInput.MediaChunks = []liveBlob{{MIMEType: chunk.MIMEType, Data: chunk.Data}}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		if c.isClosed() || errors.Is(err, websocket.ErrCloseSent) {
			return live.ErrClosed
		}
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}
	return nil
}

// Receive is called from a single goroutine.
func (c *liveChannel) Receive(ctx context.Context) (string, error) {
	for len(c.pending) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("%w: %v", live.ErrClosed, err)
		}
		var msg liveServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.GoAway != nil {
			return "", fmt.Errorf("%w: server sent goAway", live.ErrClosed)
		}
		if msg.ServerContent == nil || msg.ServerContent.ModelTurn == nil {
			continue
		}
		for _, part := range msg.ServerContent.ModelTurn.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				c.pending = append(c.pending, part.InlineData.Data)
			}
		}
	}
	next := c.pending[0]
	c.pending = c.pending[1:]
	return next, nil
}

func (c *liveChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		// WriteControl may run concurrently with WriteJSON
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}
