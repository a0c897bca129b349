package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Emitter is the capability components use to record security events. It
// stamps each event and shields the caller from sink failures: errors are
// logged and panics recovered, so Emit never fails the calling operation.
type Emitter struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewEmitter wraps sink. A nil sink drops events, a nil logger uses
// slog.Default and a nil clock uses time.Now.
func NewEmitter(sink Sink, logger *slog.Logger, now func() time.Time) *Emitter {
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Emitter{sink: sink, logger: logger, now: now}
}

// Emit records an event of type t for accountID. details and metadata are
// optional.
func (e *Emitter) Emit(ctx context.Context, t EventType, accountID, details string, metadata map[string]string) {
	if e == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	event := Event{
		ID:            ulid.Make().String(),
		Timestamp:     e.now().UTC(),
		AccountID:     accountID,
		Type:          t,
		SourceAddress: SourceAddressFromContext(ctx),
		Details:       details,
		Metadata:      metadata,
	}

	if p, ok := ctx.Value(pendingContextKey{}).(*Pending); ok && p != nil {
		p.add(event)
		return
	}
	e.deliver(ctx, event)
}

// Flush delivers the events held by p in emission order and empties it.
func (e *Emitter) Flush(ctx context.Context, p *Pending) {
	if e == nil || p == nil {
		return
	}
	for _, event := range p.take() {
		e.deliver(ctx, event)
	}
}

func (e *Emitter) deliver(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "security event sink panicked",
				slog.String("event_type", string(event.Type)),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := e.sink.Emit(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "security event not recorded",
			slog.String("event_type", string(event.Type)),
			slog.String("account_id", event.AccountID),
			slog.Any("error", err))
	}
}

type pendingContextKey struct{}

// Pending holds events emitted under a context returned by Defer until the
// caller either flushes them or discards them. It lets a read-modify-write
// publish events only once the write has been persisted.
type Pending struct {
	mu     sync.Mutex
	events []Event
}

// Defer returns a context under which Emit collects events into the
// returned Pending instead of delivering them.
func Defer(ctx context.Context) (context.Context, *Pending) {
	p := &Pending{}
	return context.WithValue(ctx, pendingContextKey{}, p), p
}

// Discard drops every held event.
func (p *Pending) Discard() {
	p.take()
}

// Len reports how many events are held.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *Pending) add(event Event) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *Pending) take() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := p.events
	p.events = nil
	return events
}
