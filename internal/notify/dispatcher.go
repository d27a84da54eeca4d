package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

const (
	defaultQueueSize = 256
	deliverTimeout   = 5 * time.Second
)

// Sink persists rendered notifications.
type Sink interface {
	PutNotification(ctx context.Context, n Notification) error
}

// Publisher pushes a stored notification to a connected recipient.
type Publisher interface {
	Publish(userID string, n Notification)
}

type DispatcherOptions struct {
	QueueSize int
	Renderer  *Renderer
	Publisher Publisher
	Clock     func() time.Time
	NewID     func() (string, error)
	Logger    *slog.Logger
}

// Dispatcher delivers intents in the background. Enqueue never blocks and
// delivery failures are only logged.
type Dispatcher struct {
	sink      Sink
	renderer  *Renderer
	publisher Publisher
	clock     func() time.Time
	newID     func() (string, error)
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Intent
	done   chan struct{}
}

func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Renderer == nil {
		opts.Renderer = NewRenderer(language.BritishEnglish, opts.Clock)
	}
	if opts.NewID == nil {
		opts.NewID = func() (string, error) {
			id, err := uuid.NewV7()
			return id.String(), err
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	d := &Dispatcher{
		sink:      sink,
		renderer:  opts.Renderer,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		newID:     opts.NewID,
		logger:    opts.Logger,
		queue:     make(chan Intent, opts.QueueSize),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue hands intent to the delivery worker, dropping it when the queue is
// full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(intent Intent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped after close", "kind", intent.Kind, "recipient", intent.RecipientUserID)
		return
	}
	select {
	case d.queue <- intent:
	default:
		d.logger.Warn("notification queue full, dropping", "kind", intent.Kind, "recipient", intent.RecipientUserID)
	}
}

// Close stops intake and waits for queued intents to be delivered.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for intent := range d.queue {
		d.deliver(intent)
	}
}

func (d *Dispatcher) deliver(intent Intent) {
	log := d.logger.With("kind", intent.Kind, "recipient", intent.RecipientUserID, "session_id", intent.SessionID)
	if intent.RecipientUserID == "" || !intent.Kind.Valid() {
		log.Warn("notification intent rejected")
		return
	}
	text, err := d.renderer.Render(intent)
	if err != nil {
		log.Warn("render notification", "err", err)
		return
	}
	id, err := d.newID()
	if err != nil {
		log.Warn("notification id", "err", err)
		return
	}
	n := Notification{
		ID:              id,
		RecipientUserID: intent.RecipientUserID,
		Kind:            intent.Kind,
		Message:         text,
		SessionID:       intent.SessionID,
		CreatedAt:       d.clock().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	if err := d.sink.PutNotification(ctx, n); err != nil {
		log.Error("store notification", "err", err)
		return
	}
	if d.publisher != nil {
		d.publisher.Publish(n.RecipientUserID, n)
	}
}
