// internal/notify/dispatcher.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/common/metrics"
	"admissions-workflow/internal/models"
	"admissions-workflow/internal/workflow"

	"github.com/google/uuid"
)

var (
	ErrDispatcherStopped = errors.New("notification dispatcher stopped")
	ErrNoSender          = errors.New("no sender registered for channel")
)

// DeadLetterSink stores notifications that exhausted their retries.
type DeadLetterSink interface {
	Push(ctx context.Context, n models.Notification) error
}

type Options struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 5 * time.Second
	}
	return o
}

// Dispatcher turns committed transitions into notifications and delivers
// them from a fixed pool of workers. Enqueueing never blocks the caller: a
// full queue sends the notification straight to the dead-letter list.
type Dispatcher struct {
	opts        Options
	senders     map[models.NotificationChannel]Sender
	templates   map[models.Status]models.NotificationTemplate
	deadLetters DeadLetterSink
	logger      logger.Logger
	now         func() time.Time
	newID       func() string

	mu      sync.RWMutex
	queue   chan models.Notification
	stopped bool
	wg      sync.WaitGroup
}

var _ workflow.Observer = (*Dispatcher)(nil)

func NewDispatcher(opts Options, deadLetters DeadLetterSink, log logger.Logger, senders ...Sender) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:        opts,
		senders:     map[models.NotificationChannel]Sender{},
		templates:   DefaultTemplates(),
		deadLetters: deadLetters,
		logger:      log.WithFields(map[string]interface{}{"component": "notify.dispatcher"}),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		queue:       make(chan models.Notification, opts.QueueSize),
	}
	for _, s := range senders {
		if s != nil {
			d.senders[s.Channel()] = s
		}
	}
	return d
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for n := range d.queue {
				d.deliver(n)
			}
		}()
	}
	d.logger.Info("notification dispatcher started", map[string]interface{}{
		"workers":   d.opts.Workers,
		"queueSize": d.opts.QueueSize,
	})
}

// Stop closes the queue and waits for queued notifications to drain or ctx
// to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TransitionCommitted queues one notification per configured channel the
// applicant can be reached on.
func (d *Dispatcher) TransitionCommitted(ctx context.Context, app models.Application, event models.StateChangeEvent) error {
	tmpl, ok := d.templates[event.ToState]
	if !ok {
		return nil
	}

	name, email, phone := contact(app.Intake)
	data := map[string]interface{}{
		"name":          name,
		"applicationId": app.ID,
		"recordType":    string(app.Type),
		"status":        workflow.Display(event.ToState).Label,
		"reason":        event.Reason,
	}

	var errs []error
	for _, n := range d.build(app, event, tmpl, data, email, phone) {
		if err := d.Enqueue(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) build(app models.Application, event models.StateChangeEvent, tmpl models.NotificationTemplate,
	data map[string]interface{}, email, phone string) []models.Notification {
	now := d.now().UTC()
	var out []models.Notification
	if _, ok := d.senders[models.ChannelEmail]; ok && email != "" {
		out = append(out, models.Notification{
			ID:            d.newID(),
			ApplicationID: app.ID,
			Status:        event.ToState,
			Channel:       models.ChannelEmail,
			Recipient:     email,
			Subject:       renderTemplate(tmpl.Subject, data),
			Body:          renderTemplate(tmpl.Body, data),
			CreatedAt:     now,
		})
	}
	if _, ok := d.senders[models.ChannelSMS]; ok && phone != "" && tmpl.SMS != "" {
		out = append(out, models.Notification{
			ID:            d.newID(),
			ApplicationID: app.ID,
			Status:        event.ToState,
			Channel:       models.ChannelSMS,
			Recipient:     phone,
			Body:          renderTemplate(tmpl.SMS, data),
			CreatedAt:     now,
		})
	}
	return out
}

// Enqueue hands n to the worker pool without blocking. Channels without a
// registered sender are refused.
func (d *Dispatcher) Enqueue(ctx context.Context, n models.Notification) error {
	if _, ok := d.senders[n.Channel]; !ok {
		return fmt.Errorf("%w: %q", ErrNoSender, n.Channel)
	}
	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		return d.deadLetter(ctx, n, ErrDispatcherStopped)
	}
	select {
	case d.queue <- n:
		d.mu.RUnlock()
		return nil
	default:
		d.mu.RUnlock()
		return d.deadLetter(ctx, n, errors.New("notification queue full"))
	}
}

func (d *Dispatcher) deliver(n models.Notification) {
	sender := d.senders[n.Channel]
	ctx := context.Background()
	backoff := d.opts.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		n.Attempts = attempt
		attemptCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
		lastErr = sender.Send(attemptCtx, n)
		cancel()
		if lastErr == nil {
			metrics.NotificationsSent.WithLabelValues(string(n.Channel)).Inc()
			d.logger.Debug("notification sent", map[string]interface{}{
				"notificationId": n.ID,
				"applicationId":  n.ApplicationID,
				"channel":        string(n.Channel),
				"attempts":       attempt,
			})
			return
		}

		d.logger.Warn("notification attempt failed", map[string]interface{}{
			"notificationId": n.ID,
			"channel":        string(n.Channel),
			"attempt":        attempt,
			"error":          lastErr,
		})
		if attempt < d.opts.MaxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	_ = d.deadLetter(ctx, n, lastErr)
}

func (d *Dispatcher) deadLetter(ctx context.Context, n models.Notification, cause error) error {
	n.LastError = cause.Error()
	metrics.NotificationsFailed.WithLabelValues(string(n.Channel)).Inc()
	d.logger.Error("notification dead-lettered", map[string]interface{}{
		"notificationId": n.ID,
		"applicationId":  n.ApplicationID,
		"channel":        string(n.Channel),
		"attempts":       n.Attempts,
		"error":          cause,
	})
	if d.deadLetters == nil {
		return nil
	}
	if err := d.deadLetters.Push(ctx, n); err != nil {
		d.logger.Error("failed to store dead letter", map[string]interface{}{
			"notificationId": n.ID,
			"error":          err,
		})
		return fmt.Errorf("dead letter %s: %w", n.ID, err)
	}
	return nil
}
