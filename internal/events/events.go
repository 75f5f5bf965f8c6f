package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// ===============================
// EVENT INTERFACE
// ===============================

// Event represents a domain event
type Event interface {
	GetEventID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetUserID() *int64
	GetMetadata() map[string]interface{}
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    *int64                 `json:"user_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a new event of the given type for userID
func NewBaseEvent(eventType string, userID int64, at time.Time) BaseEvent {
	uid := userID
	return BaseEvent{
		EventID:   GenerateEventID(),
		EventType: eventType,
		Timestamp: at,
		UserID:    &uid,
	}
}

func (e *BaseEvent) GetEventID() string                  { return e.EventID }
func (e *BaseEvent) GetEventType() string                { return e.EventType }
func (e *BaseEvent) GetTimestamp() time.Time             { return e.Timestamp }
func (e *BaseEvent) GetUserID() *int64                   { return e.UserID }
func (e *BaseEvent) GetMetadata() map[string]interface{} { return e.Metadata }

// ===============================
// EVENT BUS INTERFACE
// ===============================

// EventBus defines the event publishing and subscription interface
type EventBus interface {
	// Publishing
	Publish(ctx context.Context, event Event) error
	PublishAsync(ctx context.Context, event Event) error

	// Subscription
	Subscribe(eventType string, handler EventHandler) error
	SubscribePattern(pattern string, handler EventHandler) error
	Unsubscribe(pattern string, handlerID string) error

	// Management
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health() error
	Stats() *EventBusStats
}

// EventHandler represents an event handler
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
	GetHandlerID() string
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc struct {
	ID   string
	Func func(ctx context.Context, event Event) error
}

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error { return f.Func(ctx, event) }
func (f EventHandlerFunc) GetHandlerID() string                          { return f.ID }

// NewEventHandlerFunc creates an EventHandler from a function
func NewEventHandlerFunc(id string, fn func(ctx context.Context, event Event) error) EventHandler {
	return EventHandlerFunc{ID: id, Func: fn}
}

// EventBusStats represents event bus statistics
type EventBusStats struct {
	EventsPublished int64         `json:"events_published"`
	EventsProcessed int64         `json:"events_processed"`
	EventsFailed    int64         `json:"events_failed"`
	EventsDropped   int64         `json:"events_dropped"`
	HandlersCount   int           `json:"handlers_count"`
	QueueDepth      int           `json:"queue_depth"`
	Uptime          time.Duration `json:"uptime"`
}

// EventBusConfig holds configuration for the event bus
type EventBusConfig struct {
	BufferSize     int
	WorkerCount    int
	HandlerTimeout time.Duration
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() *EventBusConfig {
	return &EventBusConfig{
		BufferSize:     256,
		WorkerCount:    2,
		HandlerTimeout: 5 * time.Second,
	}
}

// ===============================
// IN-MEMORY EVENT BUS
// ===============================

type inMemoryEventBus struct {
	mu              sync.RWMutex
	handlers        map[string][]EventHandler
	patternHandlers map[string][]EventHandler
	eventQueue      chan eventMessage
	logger          *zap.Logger
	config          EventBusConfig
	startTime       time.Time
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	startOnce       sync.Once

	published atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

type eventMessage struct {
	ctx   context.Context
	event Event
}

// NewInMemoryEventBus creates a new in-memory event bus. Call Start before
// publishing asynchronously.
func NewInMemoryEventBus(config *EventBusConfig, logger *zap.Logger) EventBus {
	if config == nil {
		config = DefaultEventBusConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultEventBusConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = DefaultEventBusConfig().HandlerTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &inMemoryEventBus{
		handlers:        make(map[string][]EventHandler),
		patternHandlers: make(map[string][]EventHandler),
		eventQueue:      make(chan eventMessage, config.BufferSize),
		logger:          logger,
		config:          *config,
		startTime:       time.Now(),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Publish delivers an event synchronously to every matching handler
func (b *inMemoryEventBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	b.published.Add(1)
	if err := b.processEvent(ctx, event); err != nil {
		b.failed.Add(1)
		b.logger.Error("Failed to process event",
			zap.String("event_id", event.GetEventID()),
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
		return err
	}

	b.processed.Add(1)
	return nil
}

// PublishAsync queues an event for the workers. A full queue drops the event.
func (b *inMemoryEventBus) PublishAsync(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is stopped")
	default:
	}

	// Handlers outlive the request that produced the event.
	msg := eventMessage{ctx: context.WithoutCancel(ctx), event: event}

	select {
	case b.eventQueue <- msg:
		b.published.Add(1)
		return nil
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is stopped")
	default:
		b.dropped.Add(1)
		return fmt.Errorf("event queue is full")
	}
}

// Subscribe subscribes to events of a specific type
func (b *inMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", eventType),
		zap.String("handler_id", handler.GetHandlerID()),
	)
	return nil
}

// SubscribePattern subscribes to events matching a pattern ("*" or "prefix.*")
func (b *inMemoryEventBus) SubscribePattern(pattern string, handler EventHandler) error {
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	b.patternHandlers[pattern] = append(b.patternHandlers[pattern], handler)
	b.mu.Unlock()

	b.logger.Debug("Pattern handler subscribed",
		zap.String("pattern", pattern),
		zap.String("handler_id", handler.GetHandlerID()),
	)
	return nil
}

// Unsubscribe removes a handler registered under an event type or pattern
func (b *inMemoryEventBus) Unsubscribe(pattern string, handlerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, registry := range []map[string][]EventHandler{b.handlers, b.patternHandlers} {
		handlers := registry[pattern]
		for i, h := range handlers {
			if h.GetHandlerID() == handlerID {
				registry[pattern] = append(handlers[:i:i], handlers[i+1:]...)
				return nil
			}
		}
	}

	return fmt.Errorf("handler %s not found", handlerID)
}

// Start starts the event bus workers
func (b *inMemoryEventBus) Start(ctx context.Context) error {
	b.startOnce.Do(func() {
		b.logger.Info("Starting event bus", zap.Int("worker_count", b.config.WorkerCount))
		for i := 0; i < b.config.WorkerCount; i++ {
			b.wg.Add(1)
			go b.worker(i)
		}
	})
	return nil
}

// Stop stops the workers, waiting for them until ctx expires
func (b *inMemoryEventBus) Stop(ctx context.Context) error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus stop timeout")
		return ctx.Err()
	}
}

// Health reports a stopped bus or a queue over 80% full
func (b *inMemoryEventBus) Health() error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is stopped")
	default:
	}

	depth := len(b.eventQueue)
	if depth > b.config.BufferSize*80/100 {
		return fmt.Errorf("event queue is %d%% full", depth*100/b.config.BufferSize)
	}
	return nil
}

func (b *inMemoryEventBus) Stats() *EventBusStats {
	b.mu.RLock()
	handlers := 0
	for _, hs := range b.handlers {
		handlers += len(hs)
	}
	for _, hs := range b.patternHandlers {
		handlers += len(hs)
	}
	b.mu.RUnlock()

	return &EventBusStats{
		EventsPublished: b.published.Load(),
		EventsProcessed: b.processed.Load(),
		EventsFailed:    b.failed.Load(),
		EventsDropped:   b.dropped.Load(),
		HandlersCount:   handlers,
		QueueDepth:      len(b.eventQueue),
		Uptime:          time.Since(b.startTime),
	}
}

func (b *inMemoryEventBus) worker(workerID int) {
	defer b.wg.Done()

	for {
		select {
		case msg := <-b.eventQueue:
			if err := b.processEvent(msg.ctx, msg.event); err != nil {
				b.failed.Add(1)
				b.logger.Error("Failed to process event",
					zap.Int("worker_id", workerID),
					zap.String("event_id", msg.event.GetEventID()),
					zap.String("event_type", msg.event.GetEventType()),
					zap.Error(err),
				)
			} else {
				b.processed.Add(1)
			}
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *inMemoryEventBus) processEvent(ctx context.Context, event Event) error {
	eventType := event.GetEventType()

	b.mu.RLock()
	var matched []EventHandler
	matched = append(matched, b.handlers[eventType]...)
	for pattern, handlers := range b.patternHandlers {
		if matchesPattern(eventType, pattern) {
			matched = append(matched, handlers...)
		}
	}
	b.mu.RUnlock()

	failures := 0
	for _, handler := range matched {
		if err := b.executeHandler(ctx, handler, event); err != nil {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("failed to execute %d out of %d handlers", failures, len(matched))
	}
	return nil
}

// executeHandler runs one handler with a timeout and panic recovery
func (b *inMemoryEventBus) executeHandler(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				zap.String("handler_id", handler.GetHandlerID()),
				zap.String("event_type", event.GetEventType()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler %s panicked: %v", handler.GetHandlerID(), r)
		}
	}()

	handlerCtx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
	defer cancel()

	return handler.Handle(handlerCtx, event)
}

// matchesPattern checks if an event type matches a pattern
func matchesPattern(eventType, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(eventType) >= len(prefix) && eventType[:len(prefix)] == prefix
	}

	return eventType == pattern
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Sprintf("evt_%d", time.Now().UnixNano())
	}
	return "evt_" + id.String()
}
