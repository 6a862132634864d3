package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/notify-stream/internal/domain"
	"github.com/notifyhub/notify-stream/internal/queue"
)

// Forwarder is a display sink that hands notifications to a Provider on a
// background goroutine, so a slow webhook never stalls the stream consumer.
type Forwarder struct {
	prov    Provider
	q       *queue.Queue[domain.Notification]
	timeout time.Duration
	logger  *zap.Logger

	onForwarded func()
	onFailed    func()
}

// NewForwarder builds a Forwarder. onForwarded and onFailed are optional
// (nil = no-op).
func NewForwarder(prov Provider, timeout time.Duration, logger *zap.Logger, onForwarded, onFailed func()) *Forwarder {
	if onForwarded == nil {
		onForwarded = func() {}
	}
	if onFailed == nil {
		onFailed = func() {}
	}
	return &Forwarder{
		prov:        prov,
		q:           queue.New[domain.Notification](),
		timeout:     timeout,
		logger:      logger,
		onForwarded: onForwarded,
		onFailed:    onFailed,
	}
}

// Show queues n for delivery. It never blocks. Items shown after Stop are
// dropped.
func (f *Forwarder) Show(n domain.Notification) {
	if err := f.q.Push(n); err != nil {
		f.logger.Debug("forwarder stopped; notification not forwarded", zap.String("notification_id", n.ID))
	}
}

// Run delivers queued notifications until Stop has been called and the
// queue is drained, or ctx is cancelled. Failed deliveries are logged and
// not retried.
func (f *Forwarder) Run(ctx context.Context) {
	f.logger.Info("forwarder started")
	for {
		n, ok := f.q.Pop(ctx)
		if !ok {
			f.logger.Info("forwarder stopping")
			return
		}
		f.deliver(ctx, n)
	}
}

// Stop lets Run finish what is already queued and return.
func (f *Forwarder) Stop() {
	f.q.Close()
}

func (f *Forwarder) deliver(ctx context.Context, n domain.Notification) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	log := f.logger.With(zap.String("notification_id", n.ID))
	if err := f.prov.Send(ctx, n); err != nil {
		log.Warn("forward failed", zap.Error(err))
		f.onFailed()
		return
	}
	f.onForwarded()
	log.Debug("notification forwarded")
}
