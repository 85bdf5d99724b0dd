package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mindful-be/internal/dto"
	"mindful-be/internal/entity"
	"mindful-be/internal/pkg/logger"
	"mindful-be/internal/pkg/serverutils"
	"mindful-be/internal/repository/memory"
	"mindful-be/internal/repository/specification"
	"mindful-be/internal/repository/unitofwork"
	"mindful-be/pkg/chat"
	"mindful-be/pkg/companion"
	"mindful-be/pkg/effects"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/locale"
	"mindful-be/pkg/mode"
	"mindful-be/pkg/speech"

	"github.com/google/uuid"
)

// ImagePlaceholder stands in for an image-only message restored from storage.
const ImagePlaceholder = "[image]"

var (
	ErrSessionNotFound     = fmt.Errorf("companion session %w", serverutils.ErrNotFound)
	ErrInvalidImage        = errors.New("image must be a data URL or base64 payload")
	ErrUnknownTrack        = errors.New("unknown ambient track")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrChatUnavailable     = errors.New("the companion could not answer right now")
)

type ICompanionService interface {
	Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	Resume(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	Get(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	SetMode(ctx context.Context, sessionID string, req *dto.SetModeRequest) (*dto.ModeResponse, error)
	Submit(ctx context.Context, sessionID string, req *dto.InputRequest) (*dto.InputResponse, error)
	UpdatePreferences(ctx context.Context, sessionID string, req *dto.UpdatePreferencesRequest) (*dto.PreferencesResponse, error)
	End(ctx context.Context, sessionID string) error
	Tracks() []dto.TrackResponse

	// Attach returns the live session for a streaming connection,
	// re-hydrating it when this node does not hold it yet.
	Attach(ctx context.Context, sessionID string) (*companion.Session, error)
	Shutdown()
}

type CompanionOptions struct {
	Session         companion.Config
	DefaultLanguage string
	TtsEnabled      bool
	JwtSecret       string
	TokenTTL        time.Duration
	TranscriptLimit int
}

type companionService struct {
	sessions   *memory.SessionRepository
	uowFactory unitofwork.RepositoryFactory
	deps       companion.Deps
	opts       CompanionOptions
	logger     logger.ILogger

	// openMu keeps two requests from re-hydrating the same session twice.
	openMu sync.Mutex
}

// NewCompanionService wires the session registry to storage. uowFactory may
// be nil, in which case transcripts and session records are not persisted.
func NewCompanionService(
	sessions *memory.SessionRepository,
	uowFactory unitofwork.RepositoryFactory,
	deps companion.Deps,
	opts CompanionOptions,
	log logger.ILogger,
) ICompanionService {
	if deps.Catalog == nil {
		deps.Catalog = locale.Default()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = locale.English
	}
	if opts.TranscriptLimit <= 0 {
		opts.TranscriptLimit = 50
	}
	deps.Logger = log

	s := &companionService{
		sessions:   sessions,
		uowFactory: uowFactory,
		opts:       opts,
		logger:     log,
	}
	if uowFactory != nil {
		deps.Recorder = s
	}
	s.deps = deps
	return s
}

func (s *companionService) Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	prefs := companion.Preferences{
		Language:   s.opts.DefaultLanguage,
		TTSEnabled: s.opts.TtsEnabled,
		Track:      effects.Tracks[0].ID,
	}
	if req.Language != "" {
		if !s.deps.Catalog.Supports(req.Language) {
			return nil, ErrUnsupportedLanguage
		}
		prefs.Language = req.Language
	}
	if req.TtsEnabled != nil {
		prefs.TTSEnabled = *req.TtsEnabled
	}

	id := uuid.New()
	if s.uowFactory != nil {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		err := uow.CompanionSessionRepository().Create(ctx, &entity.CompanionSession{
			Id:         id,
			Language:   locale.Normalize(prefs.Language),
			TtsEnabled: prefs.TTSEnabled,
			Track:      prefs.Track,
			Mode:       string(mode.Guidance),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store companion session: %w", err)
		}
	}

	sess := companion.Open(ctx, id.String(), s.opts.Session, s.deps, prefs)
	s.sessions.Save(sess)

	token, err := serverutils.IssueSessionToken(s.opts.JwtSecret, sess.ID, s.opts.TokenTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("CompanionService", "Session created", map[string]interface{}{
		"session_id": sess.ID,
		"language":   sess.Preferences().Language,
	})

	return &dto.CreateSessionResponse{
		SessionId: sess.ID,
		Token:     token,
		Mode:      string(sess.Mode.Mode()),
		Language:  sess.Preferences().Language,
	}, nil
}

func (s *companionService) Resume(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	sess, err := s.Attach(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess.Snapshot()), nil
}

func (s *companionService) Attach(ctx context.Context, sessionID string) (*companion.Session, error) {
	if sess, ok := s.sessions.Get(sessionID); ok {
		return sess, nil
	}

	s.openMu.Lock()
	defer s.openMu.Unlock()
	if sess, ok := s.sessions.Get(sessionID); ok {
		return sess, nil
	}

	prefs := companion.Preferences{
		Language:   s.opts.DefaultLanguage,
		TTSEnabled: s.opts.TtsEnabled,
		Track:      effects.Tracks[0].ID,
	}
	var (
		restoreMode mode.Mode
		transcript  []chat.Message
	)

	if s.uowFactory != nil {
		id, err := uuid.Parse(sessionID)
		if err != nil {
			return nil, ErrSessionNotFound
		}
		uow := s.uowFactory.NewUnitOfWork(ctx)
		record, err := uow.CompanionSessionRepository().FindOne(ctx, specification.ByID{ID: id})
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, ErrSessionNotFound
		}
		prefs = companion.Preferences{Language: record.Language, TTSEnabled: record.TtsEnabled, Track: record.Track}
		if record.Mode == string(mode.Chat) {
			restoreMode = mode.Chat
		}

		stored, err := uow.ChatMessageRepository().ListBySession(ctx, id, s.opts.TranscriptLimit)
		if err != nil {
			s.logger.Warn("CompanionService", "Failed to load transcript, resuming without it", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
		transcript = toChatMessages(stored)
	}

	sess := companion.Open(ctx, sessionID, s.opts.Session, s.deps, prefs)
	sess.Chat.Seed(transcript)
	if restoreMode != "" {
		if _, err := sess.SetMode(ctx, restoreMode); err != nil {
			s.logger.Warn("CompanionService", "Failed to restore mode", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		}
	}
	s.sessions.Save(sess)

	s.logger.Info("CompanionService", "Session re-hydrated", map[string]interface{}{
		"session_id":      sessionID,
		"rolling_context": len(sess.Sequencer.RollingContext()),
		"transcript":      len(transcript),
	})
	return sess, nil
}

func (s *companionService) lookup(sessionID string) (*companion.Session, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *companionService) Get(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess.Snapshot()), nil
}

func (s *companionService) SetMode(ctx context.Context, sessionID string, req *dto.SetModeRequest) (*dto.ModeResponse, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	requested, err := mode.Parse(req.Mode)
	if err != nil {
		return nil, err
	}

	got, err := sess.SetMode(ctx, requested)
	if err != nil {
		return nil, err
	}

	s.updateRecord(ctx, sessionID, func(r *entity.CompanionSession) {
		// Live is never restored after a restart.
		if got == mode.Live {
			r.Mode = string(mode.Guidance)
			return
		}
		r.Mode = string(got)
	})

	return &dto.ModeResponse{
		Mode:     string(got),
		Reverted: requested == mode.Live && got != mode.Live,
	}, nil
}

func (s *companionService) Submit(ctx context.Context, sessionID string, req *dto.InputRequest) (*dto.InputResponse, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	image, err := llm.ParseImage(req.Image)
	if err != nil {
		return nil, ErrInvalidImage
	}

	out, err := sess.Submit(ctx, mode.Input{
		Text:     req.Text,
		Image:    image,
		Voice:    req.Voice,
		Grounded: req.Grounded,
	})
	if err != nil {
		if out.Mode == mode.Chat && !errors.Is(err, chat.ErrEmptyMessage) {
			return nil, fmt.Errorf("%w: %v", ErrChatUnavailable, err)
		}
		return nil, err
	}

	go s.touch(sessionID)

	res := &dto.InputResponse{
		Mode:       string(out.Mode),
		Accepted:   !out.Ignored,
		Generation: out.Generation,
	}
	if out.Reply != nil {
		reply := toChatMessageResponse(*out.Reply)
		res.Reply = &reply
	}
	return res, nil
}

func (s *companionService) UpdatePreferences(ctx context.Context, sessionID string, req *dto.UpdatePreferencesRequest) (*dto.PreferencesResponse, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	if req.Language != nil && *req.Language != "" && !s.deps.Catalog.Supports(*req.Language) {
		return nil, ErrUnsupportedLanguage
	}
	if req.Track != nil && *req.Track != "" {
		if _, ok := effects.FindTrack(*req.Track); !ok {
			return nil, ErrUnknownTrack
		}
	}

	prefs := sess.UpdatePreferences(companion.PreferencesUpdate{
		Language:   req.Language,
		TTSEnabled: req.TtsEnabled,
		Track:      req.Track,
	})

	s.updateRecord(ctx, sessionID, func(r *entity.CompanionSession) {
		r.Language = prefs.Language
		r.TtsEnabled = prefs.TTSEnabled
		r.Track = prefs.Track
	})

	return &dto.PreferencesResponse{
		Language:   prefs.Language,
		TtsEnabled: prefs.TTSEnabled,
		Track:      prefs.Track,
	}, nil
}

func (s *companionService) End(ctx context.Context, sessionID string) error {
	if _, err := s.lookup(sessionID); err != nil {
		return err
	}
	s.sessions.Delete(sessionID)

	if s.uowFactory == nil {
		return nil
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.CompanionSessionRepository().Delete(ctx, id)
}

func (s *companionService) Tracks() []dto.TrackResponse {
	res := make([]dto.TrackResponse, 0, len(effects.Tracks))
	for _, t := range effects.Tracks {
		res = append(res, dto.TrackResponse{Id: t.ID, Name: t.Name, Url: t.URL})
	}
	return res
}

func (s *companionService) Shutdown() {
	s.sessions.Flush()
}

// RecordMessage stores a transcript message and its citations.
func (s *companionService) RecordMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}

	record := &entity.ChatMessage{
		Id:                 msg.ID,
		CompanionSessionId: id,
		Role:               string(msg.Role),
		Text:               msg.Text,
		HasImage:           msg.Image != nil,
		CreatedAt:          msg.CreatedAt,
	}
	for _, c := range msg.Citations {
		record.Citations = append(record.Citations, &entity.ChatCitation{Uri: c.URI, Title: c.Title})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ChatMessageRepository().Create(ctx, record)
}

func (s *companionService) updateRecord(ctx context.Context, sessionID string, mutate func(r *entity.CompanionSession)) {
	if s.uowFactory == nil {
		return
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.CompanionSessionRepository()
	record, err := repo.FindOne(ctx, specification.ByID{ID: id})
	if err == nil && record != nil {
		mutate(record)
		record.LastActiveAt = time.Now()
		err = repo.Update(ctx, record)
	}
	if err != nil {
		s.logger.Warn("CompanionService", "Failed to update session record", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

func (s *companionService) touch(sessionID string) {
	if s.uowFactory == nil {
		return
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.uowFactory.NewUnitOfWork(ctx).CompanionSessionRepository().Touch(ctx, id); err != nil {
		s.logger.Warn("CompanionService", "Failed to touch session", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
	}
}

// SpeechPreferences reads TTS settings from the live sessions without
// extending their lifetime.
func SpeechPreferences(sessions *memory.SessionRepository) speech.Preferences {
	return func(sessionID string) (bool, string) {
		sess, ok := sessions.Peek(sessionID)
		if !ok {
			return false, ""
		}
		p := sess.Preferences()
		return p.TTSEnabled, p.Language
	}
}

// TrackResolver returns the ambient track selected in a live session.
func TrackResolver(sessions *memory.SessionRepository) effects.TrackResolver {
	return func(sessionID string) string {
		if sess, ok := sessions.Peek(sessionID); ok {
			if track := strings.TrimSpace(sess.Preferences().Track); track != "" {
				return track
			}
		}
		return effects.Tracks[0].ID
	}
}

func toChatMessages(stored []*entity.ChatMessage) []chat.Message {
	out := make([]chat.Message, 0, len(stored))
	for _, m := range stored {
		msg := chat.Message{
			ID:        m.Id,
			Role:      llm.Role(m.Role),
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		}
		// Image bytes are not stored; keep the turn in the history as text.
		if m.HasImage && strings.TrimSpace(msg.Text) == "" {
			msg.Text = ImagePlaceholder
		}
		for _, c := range m.Citations {
			msg.Citations = append(msg.Citations, llm.Citation{URI: c.Uri, Title: c.Title})
		}
		out = append(out, msg)
	}
	return out
}

func toChatMessageResponse(m chat.Message) dto.ChatMessageResponse {
	res := dto.ChatMessageResponse{
		Id:        m.ID,
		Role:      string(m.Role),
		Text:      m.Text,
		Citations: []dto.CitationResponse{},
		CreatedAt: m.CreatedAt,
	}
	for _, c := range m.Citations {
		res.Citations = append(res.Citations, dto.CitationResponse{Uri: c.URI, Title: c.Title})
	}
	return res
}

func toSessionResponse(snap companion.Snapshot) *dto.SessionResponse {
	res := &dto.SessionResponse{
		SessionId:      snap.ID,
		Mode:           string(snap.Mode),
		State:          string(snap.Sequencer.State),
		Thought:        snap.Sequencer.Thought,
		RollingContext: snap.RollingContext,
		Transcript:     make([]dto.ChatMessageResponse, 0, len(snap.Transcript)),
		LiveState:      string(snap.LiveState),
		Preferences: dto.PreferencesResponse{
			Language:   snap.Preferences.Language,
			TtsEnabled: snap.Preferences.TTSEnabled,
			Track:      snap.Preferences.Track,
		},
		CreatedAt: snap.CreatedAt,
	}
	if r := snap.Sequencer.Reply; r != nil {
		res.Reply = &dto.GuidanceReplyResponse{
			ThoughtTrace: r.ThoughtTrace,
			Realm:        r.Realm,
			Advice:       r.Advice,
			ActionIntent: string(r.ActionIntent),
			Urgency:      string(llm.Urgency(*r)),
			Fallback:     r.Fallback,
		}
	}
	for _, m := range snap.Transcript {
		res.Transcript = append(res.Transcript, toChatMessageResponse(m))
	}
	if res.RollingContext == nil {
		res.RollingContext = []string{}
	}
	return res
}
