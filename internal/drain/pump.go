package drain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/tgp/internal/account"
	"github.com/matheus3301/tgp/internal/bus"
	"go.uber.org/zap"
)

// Batch is everything drained from the account state in one pass.
type Batch struct {
	ID        string
	DrainedAt time.Time

	UnreadChats    []account.UnreadChat
	UserUpdates    []account.UserUpdate
	UserActions    []account.UserAction
	FailedContacts []account.FailedContact

	// Users holds the current record of every user named in UserUpdates.
	Users []account.User
	// Chats holds the known record of every chat in UnreadChats.
	Chats []account.Chat
	// PrivateChats and ContactsWithoutChat are snapshots, not drains.
	PrivateChats        []account.PrivateChat
	ContactsWithoutChat []account.UserID
}

// Empty reports whether the batch carries no drained items.
func (b *Batch) Empty() bool {
	return len(b.UnreadChats) == 0 &&
		len(b.UserUpdates) == 0 &&
		len(b.UserActions) == 0 &&
		len(b.FailedContacts) == 0
}

// MessageCount returns the number of drained messages across chats.
func (b *Batch) MessageCount() int {
	n := 0
	for _, c := range b.UnreadChats {
		n += len(c.Messages)
	}
	return n
}

// Pump periodically drains the account state and publishes batches on the bus.
type Pump struct {
	data     *account.Data
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewPump creates a new drain pump. A zero interval disables the loop;
// DrainOnce still works.
func NewPump(data *account.Data, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Pump {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pump{
		data:     data,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Start begins draining on every tick.
func (p *Pump) Start(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("drain pump disabled")
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx)
}

// Stop stops the pump loop and waits for it to exit.
func (p *Pump) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *Pump) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.DrainOnce()
		case <-ctx.Done():
			return
		}
	}
}

// DrainOnce drains every queue, publishes the batch when non-empty and returns it.
func (p *Pump) DrainOnce() *Batch {
	batch := &Batch{
		ID:             uuid.NewString(),
		DrainedAt:      time.Now(),
		UnreadChats:    p.data.DrainUnreadMessages(),
		UserUpdates:    p.data.DrainUserUpdates(),
		UserActions:    p.data.DrainUserActions(),
		FailedContacts: p.data.DrainFailedContacts(),
	}
	if batch.Empty() {
		return batch
	}

	for _, upd := range batch.UserUpdates {
		user, ok := p.data.GetUser(upd.UserID)
		if !ok {
			continue
		}
		batch.Users = append(batch.Users, user)
	}
	for _, unread := range batch.UnreadChats {
		if chat, ok := p.data.GetChat(unread.ChatID); ok {
			batch.Chats = append(batch.Chats, chat)
		}
	}
	batch.PrivateChats = p.data.GetPrivateChats()
	batch.ContactsWithoutChat = p.data.GetContactsWithoutChat()

	p.logger.Info("account state drained",
		zap.String("batch_id", batch.ID),
		zap.Int("chats", len(batch.UnreadChats)),
		zap.Int("messages", batch.MessageCount()),
		zap.Int("user_updates", len(batch.UserUpdates)),
		zap.Int("user_actions", len(batch.UserActions)),
		zap.Int("failed_contacts", len(batch.FailedContacts)))

	p.bus.Publish(bus.Event{
		Kind:      bus.KindAccountBatch,
		Timestamp: batch.DrainedAt,
		Payload:   batch,
	})
	return batch
}
