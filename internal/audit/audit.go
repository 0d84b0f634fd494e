// Package audit records who changed which transaction and why. Recording is a
// side channel: the emitter never blocks or fails the operation that produced
// the event.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go-pos-engine/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreate   = "create"
	ActionComplete = "complete"
	ActionFail     = "fail"
	ActionVoid     = "void"
	ActionRefund   = "refund"

	EntityTransaction = "transaction"
)

type Event struct {
	ActorUserID string
	TenantID    uuid.UUID
	Action      string
	EntityType  string
	EntityID    uuid.UUID
	OldValues   interface{}
	NewValues   interface{}
	Reason      string
}

type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Recorder is what services depend on.
type Recorder interface {
	Emit(ctx context.Context, e Event)
}

// Emitter hands each event to the sink on its own goroutine.
type Emitter struct {
	sink    Sink
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewEmitter(sink Sink, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{sink: sink, log: log.Named("audit"), timeout: 5 * time.Second}
}

// Emit records ev in the background. Once Close has been called, events are
// recorded synchronously so late callers are neither lost nor racing Close.
func (e *Emitter) Emit(ctx context.Context, ev Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.record(ctx, ev)
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		e.record(ctx, ev)
	}()
}

func (e *Emitter) record(ctx context.Context, ev Event) {
	// The request context is usually cancelled by the time the sink runs.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	if err := e.sink.Record(sctx, ev); err != nil {
		e.log.Error("failed to record audit event",
			zap.String("action", ev.Action),
			zap.String("entity_type", ev.EntityType),
			zap.String("entity_id", ev.EntityID.String()),
			zap.Error(err),
		)
	}
}

// Close waits for in-flight events.
func (e *Emitter) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
}

// GormSink writes events to the audit_logs table.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Record(ctx context.Context, e Event) error {
	row := model.AuditLog{
		ID:         uuid.New(),
		TenantID:   e.TenantID,
		Action:     e.Action,
		EntityType: e.EntityType,
	}
	if e.ActorUserID != "" {
		row.ActorUserID = &e.ActorUserID
	}
	if e.EntityID != uuid.Nil {
		id := e.EntityID
		row.EntityID = &id
	}
	if e.Reason != "" {
		row.Reason = &e.Reason
	}

	var err error
	if row.OldValues, err = toJSON(e.OldValues); err != nil {
		return err
	}
	if row.NewValues, err = toJSON(e.NewValues); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Create(&row).Error
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// MemorySink keeps events in memory. Used by tests and tools without a database.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (s *MemorySink) Record(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Actions lists the recorded actions in arrival order.
func (s *MemorySink) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}
