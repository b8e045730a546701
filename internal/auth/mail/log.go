package mail

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
)

// LogSender records that a message would have been sent. Bodies carry codes
// and links, so only the recipient and subject are logged. It is the
// default when no SMTP relay is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	slogx.FromContext(ctx).Info("email suppressed, no smtp relay configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// Outbox keeps messages in memory. Tests read codes and links back from it.
type Outbox struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

// FailWith makes every later Send return err. Pass nil to recover.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.msgs...)
}

// Last returns the most recent message sent to addr.
func (o *Outbox) Last(addr string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].To == addr {
			return o.msgs[i], true
		}
	}
	return Message{}, false
}

// Len is the number of messages sent.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}
