// Package gemini implements the companion's model contracts on the Gemini API:
// structured guidance, grounded chat and speech through google.golang.org/genai
// and the realtime voice channel over the BidiGenerateContent WebSocket.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"mindful-be/pkg/llm"
	"mindful-be/pkg/locale"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const (
	DefaultGuidanceModel = "gemini-3-pro-preview"
	DefaultChatModel     = "gemini-3-pro-preview"
	DefaultSearchModel   = "gemini-2.5-flash"
	DefaultSpeechModel   = "gemini-2.5-flash-preview-tts"
	DefaultSpeechVoice   = "Aoede"

	guidanceTemperature = 0.7
)

type Config struct {
	GuidanceModel string
	ChatModel     string
	SearchModel   string
	SpeechModel   string
	SpeechVoice   string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

func (c *Config) withDefaults() {
	if c.GuidanceModel == "" {
		c.GuidanceModel = DefaultGuidanceModel
	}
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.SearchModel == "" {
		c.SearchModel = DefaultSearchModel
	}
	if c.SpeechModel == "" {
		c.SpeechModel = DefaultSpeechModel
	}
	if c.SpeechVoice == "" {
		c.SpeechVoice = DefaultSpeechVoice
	}
}

// Provider implements llm.Guide, llm.ChatProvider and llm.Speaker.
type Provider struct {
	client  *genai.Client
	cfg     Config
	catalog *locale.Catalog
	options llm.Options
	tracer  trace.Tracer
}

func New(ctx context.Context, apiKey string, cfg Config, catalog *locale.Catalog, opts ...llm.Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cfg.withDefaults()
	if catalog == nil {
		catalog = locale.Default()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Provider{
		client:  client,
		cfg:     cfg,
		catalog: catalog,
		options: llm.ApplyOptions(llm.Options{Temperature: guidanceTemperature, Model: cfg.GuidanceModel}, opts...),
		tracer:  otel.Tracer("mindful-be/pkg/llm/gemini"),
	}, nil
}

func (p *Provider) RequestGuidance(ctx context.Context, req llm.GuidanceRequest) (llm.GuidanceReply, error) {
	ctx, span := p.startSpan(ctx, "gemini.RequestGuidance", p.options.Model,
		attribute.Bool("guidance.voice", req.Voice),
		attribute.Bool("guidance.image", req.Image != nil),
		attribute.Int("guidance.context_len", len(req.Context)),
	)
	defer span.End()

	contents := []*genai.Content{
		genai.NewContentFromParts(requestParts(req.Text, req.Image), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(GuidanceInstruction(req, p.catalog), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(p.options.Temperature),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.options.Model, contents, config)
	if err != nil {
		return llm.GuidanceReply{}, spanError(span, fmt.Errorf("gemini guidance: %w", err))
	}

	reply, err := llm.ParseGuidanceReply(resp.Text())
	if err != nil {
		return llm.GuidanceReply{}, spanError(span, err)
	}
	span.SetAttributes(attribute.String("guidance.action_intent", string(reply.ActionIntent)))
	return reply, nil
}

func (p *Provider) RequestChatTurn(ctx context.Context, req llm.ChatRequest) (llm.ChatReply, error) {
	model := p.cfg.ChatModel
	if req.Grounded {
		model = p.cfg.SearchModel
	}
	ctx, span := p.startSpan(ctx, "gemini.RequestChatTurn", model,
		attribute.Bool("chat.grounded", req.Grounded),
		attribute.Int("chat.history_len", len(req.History)),
	)
	defer span.End()

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		parts := messageParts(msg.Text, msg.Image)
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, genaiRole(msg.Role)))
	}
	contents = append(contents, genai.NewContentFromParts(requestParts(req.Text, req.Image), genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.catalog.For(req.Language).ChatPersona, genai.RoleUser),
	}
	if req.Grounded {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return llm.ChatReply{}, spanError(span, fmt.Errorf("gemini chat: %w", err))
	}

	reply := llm.ChatReply{Text: resp.Text(), Citations: Citations(resp)}
	span.SetAttributes(attribute.Int("chat.citations", len(reply.Citations)))
	return reply, nil
}

func (p *Provider) Synthesize(ctx context.Context, text, language, voice string) ([]byte, error) {
	if voice == "" {
		voice = p.cfg.SpeechVoice
	}
	ctx, span := p.startSpan(ctx, "gemini.Synthesize", p.cfg.SpeechModel,
		attribute.String("speech.voice", voice),
		attribute.String("speech.language", language),
	)
	defer span.End()

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.SpeechModel, contents, config)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("gemini speech: %w", err))
	}
	audio := InlineAudio(resp)
	if len(audio) == 0 {
		return nil, spanError(span, fmt.Errorf("gemini speech: no audio generated: %w", llm.ErrEmptyReply))
	}
	return audio, nil
}

func (p *Provider) startSpan(ctx context.Context, name, model string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("llm.model", model))
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// messageParts returns nil for a message with neither text nor image; the API
// rejects contents holding an empty part.
func messageParts(text string, image *llm.Image) []*genai.Part {
	var parts []*genai.Part
	if strings.TrimSpace(text) != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}
	if image != nil {
		parts = append(parts, genai.NewPartFromBytes(image.Data, image.MIMEType))
	}
	return parts
}

// requestParts is messageParts for the current turn, which always needs one part.
func requestParts(text string, image *llm.Image) []*genai.Part {
	if parts := messageParts(text, image); len(parts) > 0 {
		return parts
	}
	return []*genai.Part{genai.NewPartFromText(text)}
}

func genaiRole(role llm.Role) genai.Role {
	if role == llm.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// Citations maps the first candidate's web grounding chunks, in order.
func Citations(resp *genai.GenerateContentResponse) []llm.Citation {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}
	var out []llm.Citation
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		out = append(out, llm.Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return out
}

// InlineAudio returns the first inline data payload of the first candidate.
func InlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data
		}
	}
	return nil
}
