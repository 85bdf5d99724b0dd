// Package effects turns resolved action intents into timed UI effects.
package effects

import (
	"sync"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm"
)

type Effect string

const (
	EffectHideTimer    Effect = "hide_timer"
	EffectShowTimer    Effect = "show_timer"
	EffectPlaySound    Effect = "play_sound"
	EffectShowControls Effect = "show_controls"
	EffectHideControls Effect = "hide_controls"
)

const (
	dispatchUnits     = 2
	hideControlsUnits = 3
)

type Track struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

var Tracks = []Track{
	{ID: "rain", Name: "Soft Rain", URL: "synth:rain"},
	{ID: "bowl", Name: "Singing Bowl", URL: "synth:bowl"},
	{ID: "wind", Name: "Eternal Wind", URL: "synth:wind"},
}

func FindTrack(id string) (Track, bool) {
	for _, t := range Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// TrackResolver returns the ambient track a session currently has selected.
type TrackResolver func(sessionID string) string

// Router schedules effects for TURN_RESOLVED events: the intent fires two
// time units after resolution, and a new TURN_STARTED for the same session
// cancels a dispatch that has not fired yet. Controls shown by a played
// sound are always hidden three units later.
type Router struct {
	mu       sync.Mutex
	unit     time.Duration
	emitter  events.Emitter
	logger   logger.ILogger
	tracks   TrackResolver
	dispatch map[string]*time.Timer
	hide     map[string]*time.Timer
}

func NewRouter(unit time.Duration, emitter events.Emitter, log logger.ILogger, tracks TrackResolver) *Router {
	if unit <= 0 {
		unit = time.Second
	}
	if tracks == nil {
		tracks = func(string) string { return Tracks[0].ID }
	}
	return &Router{
		unit:     unit,
		emitter:  emitter,
		logger:   log,
		tracks:   tracks,
		dispatch: make(map[string]*time.Timer),
		hide:     make(map[string]*time.Timer),
	}
}

// Handle consumes orchestrator events. Unrelated event types are ignored.
func (r *Router) Handle(e events.Event) {
	switch e.EventType() {
	case events.TypeTurnStarted:
		r.Cancel(e.Session())
	case events.TypeTurnResolved:
		intent, _ := e.Payload()["action_intent"].(string)
		r.Dispatch(e.Session(), llm.ActionIntent(intent))
	}
}

// Dispatch replaces any pending dispatch of the session with the one for intent.
func (r *Router) Dispatch(sessionID string, intent llm.ActionIntent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked(sessionID)
	r.emit(sessionID, EffectHideTimer, intent, nil)

	if intent != llm.IntentSetAlarm && intent != llm.IntentPlaySound {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(time.Duration(dispatchUnits)*r.unit, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.dispatch[sessionID] != timer {
			return
		}
		delete(r.dispatch, sessionID)
		r.fireLocked(sessionID, intent)
	})
	r.dispatch[sessionID] = timer
}

func (r *Router) fireLocked(sessionID string, intent llm.ActionIntent) {
	switch intent {
	case llm.IntentSetAlarm:
		r.emit(sessionID, EffectShowTimer, intent, nil)

	case llm.IntentPlaySound:
		track, ok := FindTrack(r.tracks(sessionID))
		if !ok {
			track = Tracks[0]
		}
		r.emit(sessionID, EffectPlaySound, intent, map[string]interface{}{"track": track})
		r.emit(sessionID, EffectShowControls, intent, nil)

		// A later sound restarts the countdown of the controls it re-shows.
		if prev, ok := r.hide[sessionID]; ok {
			prev.Stop()
		}
		var hide *time.Timer
		hide = time.AfterFunc(time.Duration(hideControlsUnits)*r.unit, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.hide[sessionID] != hide {
				return
			}
			delete(r.hide, sessionID)
			r.emit(sessionID, EffectHideControls, intent, nil)
		})
		r.hide[sessionID] = hide
	}
}

// Cancel drops the session's dispatch that has not fired yet. Visible
// controls keep their hide countdown.
func (r *Router) Cancel(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(sessionID)
}

func (r *Router) cancelLocked(sessionID string) {
	if t, ok := r.dispatch[sessionID]; ok {
		t.Stop()
		delete(r.dispatch, sessionID)
	}
}

// Pending reports whether the session still has a dispatch or a hide scheduled.
func (r *Router) Pending(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, dispatching := r.dispatch[sessionID]
	_, hiding := r.hide[sessionID]
	return dispatching || hiding
}

func (r *Router) emit(sessionID string, effect Effect, intent llm.ActionIntent, extra map[string]interface{}) {
	data := map[string]interface{}{
		"effect": string(effect),
		"intent": string(intent),
	}
	for k, v := range extra {
		data[k] = v
	}
	r.logger.Debug("EffectRouter", "Effect triggered", map[string]interface{}{
		"session_id": sessionID,
		"effect":     effect,
	})
	r.emitter.Emit(events.New(events.TypeEffectTriggered, sessionID, data))
}
