package telegram

import (
	"fmt"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
)

// DecodeUpdates parses a TL-serialized Updates object.
func DecodeUpdates(data []byte) (tg.UpdatesClass, error) {
	updates, err := tg.DecodeUpdates(&bin.Buffer{Buf: data})
	if err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// DecodeContacts parses a TL-serialized contacts.Contacts object.
func DecodeContacts(data []byte) (tg.ContactsContactsClass, error) {
	contacts, err := tg.DecodeContactsContacts(&bin.Buffer{Buf: data})
	if err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	return contacts, nil
}

// DecodeDialogs parses a TL-serialized messages.Dialogs object.
func DecodeDialogs(data []byte) (tg.MessagesDialogsClass, error) {
	dialogs, err := tg.DecodeMessagesDialogs(&bin.Buffer{Buf: data})
	if err != nil {
		return nil, fmt.Errorf("decode dialogs: %w", err)
	}
	return dialogs, nil
}

// Encode serializes a TL object. It is the inverse of the Decode helpers.
func Encode(obj bin.Encoder) ([]byte, error) {
	var b bin.Buffer
	if err := obj.Encode(&b); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b.Raw(), nil
}
