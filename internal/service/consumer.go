package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/notifyhub/notify-stream/internal/protocol"
)

// consumer drains one session's MessageStream into the inbox and the sink.
type consumer struct {
	svc    *NotificationService
	sess   *session
	logger *zap.Logger
}

func newConsumer(svc *NotificationService, sess *session) *consumer {
	return &consumer{svc: svc, sess: sess, logger: svc.logger.Named("consumer")}
}

// Run blocks until the stream ends or ctx is cancelled, handling one
// message per iteration.
func (c *consumer) Run(ctx context.Context) {
	c.logger.Debug("consumer started")
	for msg := range c.sess.stream.All(ctx) {
		c.process(msg)
	}
	c.logger.Debug("consumer stopping")
}

func (c *consumer) process(msg protocol.InboundMessage) {
	switch m := msg.(type) {
	case protocol.Connected:
		c.svc.setConnected(m)
		c.logger.Info("session accepted",
			zap.String("user_id", m.UserID),
			zap.String("method", string(m.Method)),
		)

	case protocol.UnreadBatch:
		// The backlog fills the inbox quietly; only live events are displayed.
		added := c.svc.box.AddBatch(m.Items)
		c.svc.hooks.OnInbox(c.svc.box.Stats())
		c.logger.Info("unread backlog received",
			zap.Int("count", m.Count),
			zap.Int("new", len(added)),
		)

	case protocol.Event:
		log := c.logger.With(zap.String("notification_id", m.Item.ID), zap.String("event", m.Name))
		if !c.svc.box.Add(m.Item) {
			log.Debug("duplicate notification ignored")
			return
		}
		c.svc.hooks.OnInbox(c.svc.box.Stats())
		c.svc.sink.Show(m.Item)
		c.svc.hooks.OnDisplayed(m.Item.Severity)
		log.Debug("notification displayed")

	default:
		c.logger.Debug("ignoring message", zap.String("type", msg.Kind()))
	}
}
