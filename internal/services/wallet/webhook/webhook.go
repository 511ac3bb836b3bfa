// Package webhook processes signed partner events exactly once.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/platform/timeouts"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

// Event is a partner notification.
type Event struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	UserID string          `json:"userId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Dispatcher applies an event's side effects.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, event Event) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// LogDispatcher records events without acting on them.
type LogDispatcher struct{}

// Dispatch logs the event's identity. Event data is not logged.
func (LogDispatcher) Dispatch(_ context.Context, event Event) error {
	log.Printf("partner event %s (%s) for user %q", event.ID, event.Type, event.UserID)
	return nil
}

// Result reports what Process did with an event.
type Result struct {
	EventID   string `json:"eventId"`
	Duplicate bool   `json:"duplicate"`
}

// Processor dispatches each event id at most once successfully.
type Processor struct {
	store      storage.WebhookStore
	dispatcher Dispatcher
	clock      func() time.Time
}

// NewProcessor builds a Processor. A nil dispatcher logs events.
func NewProcessor(store storage.WebhookStore, dispatcher Dispatcher) (*Processor, error) {
	if store == nil {
		return nil, errors.New("webhook store is required")
	}
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}
	return &Processor{store: store, dispatcher: dispatcher, clock: time.Now}, nil
}

// Decode parses and validates an event body.
func Decode(body []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Event{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "webhook body is not valid json", err)
	}
	event.ID = strings.TrimSpace(event.ID)
	event.Type = strings.TrimSpace(event.Type)
	if event.ID == "" || event.Type == "" {
		return Event{}, apperrors.New(apperrors.CodeInvalidArgument, "webhook id and type are required")
	}
	return event, nil
}

// Process dispatches event unless its id was already claimed. The claim is
// taken before dispatch so concurrent deliveries of one id dispatch once; a
// failed dispatch releases it so the partner's retry is processed.
func (p *Processor) Process(ctx context.Context, event Event) (Result, error) {
	result := Result{EventID: event.ID}
	now := p.clock().UTC()
	err := p.store.ClaimWebhook(ctx, storage.WebhookEvent{
		EventID:        event.ID,
		Type:           event.Type,
		ClaimedAt:      now,
		LeaseExpiresAt: now.Add(timeouts.WebhookLease),
	})
	if errors.Is(err, storage.ErrConflict) {
		log.Printf("partner event %s already processed or in flight", event.ID)
		result.Duplicate = true
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("claim webhook: %w", err)
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, timeouts.WebhookDispatch)
	defer cancel()
	if err := p.dispatcher.Dispatch(dispatchCtx, event); err != nil {
		log.Printf("partner event %s dispatch failed: %v", event.ID, err)
		if releaseErr := p.store.ReleaseWebhook(ctx, event.ID); releaseErr != nil {
			log.Printf("partner event %s release: %v", event.ID, releaseErr)
		}
		return result, apperrors.Wrap(apperrors.CodeInternal, "webhook dispatch failed", err)
	}

	if err := p.store.CompleteWebhook(ctx, event.ID, p.clock().UTC()); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			log.Printf("partner event %s was recorded by another delivery", event.ID)
			return result, nil
		}
		return result, fmt.Errorf("complete webhook: %w", err)
	}
	return result, nil
}
