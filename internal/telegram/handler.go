package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/tg"
	"github.com/matheus3301/tgp/internal/bus"
	"go.uber.org/zap"
)

// Handler maps Telegram protocol objects and publishes the resulting
// changes on the bus. It does NOT touch the account state directly; the
// sync engine subscribes to the bus and applies changes in order.
//
// Handle matches gotd's telegram.UpdateHandler so a transport owner can
// install the handler as-is.
type Handler struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(b *bus.Bus, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{bus: b, logger: logger}
}

// Handle maps an updates container.
func (h *Handler) Handle(_ context.Context, updates tg.UpdatesClass) error {
	changes, err := MapUpdates(updates)
	if err != nil {
		return err
	}
	h.publish(changes, updates.TypeName())
	return nil
}

// HandleContacts maps a contacts.getContacts result.
func (h *Handler) HandleContacts(_ context.Context, result tg.ContactsContactsClass) error {
	changes, err := MapContacts(result)
	if err != nil {
		return err
	}
	h.publish(changes, result.TypeName())
	return nil
}

// HandleDialogs maps a messages.getDialogs result.
func (h *Handler) HandleDialogs(_ context.Context, result tg.MessagesDialogsClass) error {
	changes, err := MapDialogs(result)
	if err != nil {
		return err
	}
	h.publish(changes, result.TypeName())
	return nil
}

// Object kinds accepted by Ingest.
const (
	ObjectUpdates  = "updates"
	ObjectContacts = "contacts"
	ObjectDialogs  = "dialogs"
)

// Ingest decodes a TL-serialized object of the given kind and handles it.
func (h *Handler) Ingest(ctx context.Context, kind string, data []byte) error {
	switch kind {
	case ObjectUpdates:
		updates, err := DecodeUpdates(data)
		if err != nil {
			return err
		}
		return h.Handle(ctx, updates)
	case ObjectContacts:
		contacts, err := DecodeContacts(data)
		if err != nil {
			return err
		}
		return h.HandleContacts(ctx, contacts)
	case ObjectDialogs:
		dialogs, err := DecodeDialogs(data)
		if err != nil {
			return err
		}
		return h.HandleDialogs(ctx, dialogs)
	default:
		return fmt.Errorf("ingest: unknown object kind %q", kind)
	}
}

func (h *Handler) publish(changes *Changes, typeName string) {
	if changes.Empty() {
		h.logger.Debug("no account changes", zap.String("type", typeName))
		return
	}
	h.bus.Publish(bus.Event{
		Kind:      bus.KindTelegramChanges,
		Timestamp: time.Now(),
		Payload:   changes,
	})
}
