package llm

import (
	"context"
	"errors"
	"strings"

	"mindful-be/pkg/locale"
)

// FallbackGuide turns transport and parse failures of the wrapped Guide into
// the localized fallback reply. Cancellation and deadline errors are returned
// unchanged.
type FallbackGuide struct {
	next    Guide
	catalog *locale.Catalog
	onError func(err error)
}

func NewFallbackGuide(next Guide, catalog *locale.Catalog, onError func(err error)) *FallbackGuide {
	if catalog == nil {
		catalog = locale.Default()
	}
	return &FallbackGuide{next: next, catalog: catalog, onError: onError}
}

func (g *FallbackGuide) RequestGuidance(ctx context.Context, req GuidanceRequest) (GuidanceReply, error) {
	reply, err := g.next.RequestGuidance(ctx, req)
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return GuidanceReply{}, err
	}
	if g.onError != nil {
		g.onError(err)
	}
	return FallbackReply(g.catalog, req.Language), nil
}

func FallbackReply(catalog *locale.Catalog, language string) GuidanceReply {
	p := catalog.For(language)
	return GuidanceReply{
		ThoughtTrace: p.Fallback.ThoughtTrace,
		Realm:        p.Fallback.Realm,
		Advice:       p.Fallback.Advice,
		ActionIntent: IntentNone,
		Fallback:     true,
	}
}

type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

var intenseRealms = []string{"anxiety", "anger", "lo âu", "giận"}

// Urgency grades a reply for the ambient animation.
func Urgency(reply GuidanceReply) UrgencyLevel {
	if reply.ActionIntent == IntentPlaySound {
		return UrgencyHigh
	}
	realm := strings.ToLower(reply.Realm)
	for _, marker := range intenseRealms {
		if strings.Contains(realm, marker) {
			return UrgencyHigh
		}
	}
	if reply.ActionIntent == IntentSetAlarm {
		return UrgencyMedium
	}
	return UrgencyLow
}
