package postgres

import (
	"context"
	"encoding/json"

	"github.com/samber/oops"

	"github.com/MrEthical07/accountguard/audit"
)

// EventStore persists security events. It implements audit.Sink.
type EventStore struct {
	pool poolIface
}

func NewEventStore(pool poolIface) *EventStore {
	return &EventStore{pool: pool}
}

// Emit inserts event. Inserting an event ID twice is a no-op.
func (s *EventStore) Emit(ctx context.Context, event audit.Event) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return oops.Code("EVENT_INSERT_FAILED").
				With("operation", "marshal metadata").
				Wrap(err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO security_events (id, account_id, event_type, source_address, details, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID,
		nullable(event.AccountID),
		string(event.Type),
		nullable(event.SourceAddress),
		nullable(event.Details),
		metadata,
		event.Timestamp,
	)
	if err != nil {
		return oops.Code("EVENT_INSERT_FAILED").
			With("operation", "insert security event").
			With("event_type", string(event.Type)).
			With("account_id", event.AccountID).
			Wrap(err)
	}
	return nil
}

// ListByAccount returns the newest events for accountID, newest first.
func (s *EventStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, event_type, source_address, details, metadata, created_at
		FROM security_events
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, oops.Code("EVENT_LIST_FAILED").
			With("operation", "list security events").
			With("account_id", accountID).
			Wrap(err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                             audit.Event
			eventType                     string
			accountIDCol, source, details *string
			metadata                      []byte
		)
		if err := rows.Scan(&e.ID, &accountIDCol, &eventType, &source, &details, &metadata, &e.Timestamp); err != nil {
			return nil, oops.Code("EVENT_LIST_FAILED").
				With("operation", "scan security event").
				Wrap(err)
		}
		e.Type = audit.EventType(eventType)
		e.AccountID = deref(accountIDCol)
		e.SourceAddress = deref(source)
		e.Details = deref(details)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, oops.Code("EVENT_LIST_FAILED").
					With("operation", "decode event metadata").
					With("event_id", e.ID).
					Wrap(err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("EVENT_LIST_FAILED").
			With("operation", "iterate security events").
			Wrap(err)
	}
	return events, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
