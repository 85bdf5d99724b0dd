package service

import (
	"context"
	"fmt"

	"mindful-be/internal/dto"
	"mindful-be/internal/entity"
	"mindful-be/internal/pkg/logger"
	"mindful-be/internal/repository/specification"
	"mindful-be/internal/repository/unitofwork"
	"mindful-be/pkg/events"
	pktNats "mindful-be/pkg/nats"

	"github.com/google/uuid"
)

const JournalDurable = "realm-journal"

type IJournalService interface {
	// Start consumes resolved turns from the durable stream.
	Start(ctx context.Context, sub *pktNats.Subscriber) error
	Record(ctx context.Context, event events.Event) error
	List(ctx context.Context, sessionID string, query dto.JournalQuery) ([]dto.JournalEntryResponse, error)
}

type journalService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewJournalService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IJournalService {
	return &journalService{
		uowFactory: uowFactory,
		logger:     log,
	}
}

func (s *journalService) Start(ctx context.Context, sub *pktNats.Subscriber) error {
	subject := pktNats.Subject(events.TypeTurnResolved)
	if err := sub.Subscribe(ctx, subject, JournalDurable, s.Record); err != nil {
		return err
	}
	s.logger.Info("JournalService", "Realm journal listening", map[string]interface{}{"subject": subject})
	return nil
}

// Record stores a TURN_RESOLVED event. Fallback replies and events of other
// types are skipped.
func (s *journalService) Record(ctx context.Context, event events.Event) error {
	if event.EventType() != events.TypeTurnResolved {
		return nil
	}
	data := event.Payload()
	if fallback, _ := data["fallback"].(bool); fallback {
		return nil
	}

	sessionID, err := uuid.Parse(event.Session())
	if err != nil {
		s.logger.Warn("JournalService", "Skipping event with foreign session id", map[string]interface{}{"session_id": event.Session()})
		return nil
	}

	entry := &entity.RealmJournalEntry{
		CompanionSessionId: sessionID,
		Realm:              stringField(data, "realm"),
		ActionIntent:       stringField(data, "action_intent"),
		Urgency:            stringField(data, "urgency"),
		Advice:             stringField(data, "advice"),
		Context:            stringsField(data, "context"),
		CreatedAt:          event.Timestamp(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.RealmJournalRepository().Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to store journal entry: %w", err)
	}
	return nil
}

func (s *journalService) List(ctx context.Context, sessionID string, query dto.JournalQuery) ([]dto.JournalEntryResponse, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	specs := []specification.Specification{specification.ByCompanionSessionID{SessionID: id}}
	if query.Realm != "" {
		specs = append(specs, specification.ByRealm{Realm: query.Realm})
	}
	if query.Intent != "" {
		specs = append(specs, specification.Filter("action_intent", query.Intent))
	}
	if !query.Since.IsZero() {
		specs = append(specs, specification.CreatedSince{Since: query.Since})
	}
	specs = append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	entries, err := uow.RealmJournalRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := make([]dto.JournalEntryResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, dto.JournalEntryResponse{
			Id:           e.Id,
			Realm:        e.Realm,
			ActionIntent: e.ActionIntent,
			Urgency:      e.Urgency,
			Advice:       e.Advice,
			Context:      e.Context,
			CreatedAt:    e.CreatedAt,
		})
	}
	return res, nil
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}

// stringsField accepts both []string and the []interface{} a JSON round
// trip produces.
func stringsField(data map[string]interface{}, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
