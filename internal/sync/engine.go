package sync

import (
	"context"
	"errors"

	"github.com/matheus3301/tgp/internal/account"
	"github.com/matheus3301/tgp/internal/bus"
	"github.com/matheus3301/tgp/internal/telegram"
	"go.uber.org/zap"
)

// DefaultBufferSize is the bus buffer used when none is configured.
const DefaultBufferSize = 256

// Engine is the single ingestion flow into the account state.
// It subscribes to "telegram.*" events on the bus and applies them in order.
type Engine struct {
	data    *account.Data
	bus     *bus.Bus
	logger  *zap.Logger
	bufSize int
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(data *account.Data, b *bus.Bus, logger *zap.Logger, bufSize int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Engine{
		data:    data,
		bus:     b,
		logger:  logger,
		bufSize: bufSize,
	}
}

// Start subscribes to protocol changes on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.SubscribeLossless("telegram.", e.bufSize)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				// Apply whatever was already delivered.
				for {
					select {
					case evt := <-ch:
						e.handleEvent(evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit. Events
// already buffered on the subscription are applied first.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindTelegramChanges:
		changes, ok := evt.Payload.(*telegram.Changes)
		if !ok {
			e.logger.Warn("unexpected payload", zap.String("kind", evt.Kind))
			return
		}
		e.Apply(changes)
	}
}

// Apply merges changes into the account state: entities first, then
// contact and chat lists, then the updates that reference them.
func (e *Engine) Apply(changes *telegram.Changes) {
	if changes == nil {
		return
	}

	for i := range changes.Users {
		e.data.UpsertUser(&changes.Users[i])
	}
	for i := range changes.Chats {
		e.data.UpsertChat(&changes.Chats[i])
	}
	for i := range changes.PeerChats {
		if _, ok := e.data.GetChat(changes.PeerChats[i].ID); ok {
			continue
		}
		e.data.UpsertChat(&changes.PeerChats[i])
	}
	if len(changes.Contacts) > 0 {
		e.data.SetContacts(changes.Contacts)
	}
	if changes.ActiveChats != nil {
		e.data.SetActiveChats(changes.ActiveChats)
	}
	for _, sc := range changes.StatusChanges {
		if err := e.data.RecordUserStatusChange(sc.UserID, sc.Status); err != nil && !errors.Is(err, account.ErrUnknownUser) {
			e.logger.Error("failed to record status change", zap.Error(err), zap.Int64("user_id", int64(sc.UserID)))
		}
	}
	for i := range changes.Messages {
		e.data.EnqueueMessage(&changes.Messages[i])
	}
	for _, action := range changes.Typing {
		e.data.SetTypingAction(action.UserID, action.IsTyping)
	}
}

// AddContactRequest remembers an outgoing add-contact request.
func (e *Engine) AddContactRequest(requestID uint64, phoneNumber string, userID account.UserID) {
	e.logger.Debug("add contact request",
		zap.Uint64("request_id", requestID),
		zap.String("phone", phoneNumber))
	e.data.AddContactRequest(requestID, phoneNumber, userID)
}

// CompleteContactRequest resolves a pending add-contact request. A non-nil
// result error is recorded as a failed contact. Unknown ids are stale or
// duplicate callbacks and report false.
func (e *Engine) CompleteContactRequest(requestID uint64, result error) (account.ContactRequest, bool) {
	req, ok := e.data.ExtractContactRequest(requestID)
	if !ok {
		e.logger.Debug("contact request not pending", zap.Uint64("request_id", requestID))
		return account.ContactRequest{}, false
	}
	if result != nil {
		e.data.RecordFailedContact(req.PhoneNumber, result)
	}
	return req, true
}
