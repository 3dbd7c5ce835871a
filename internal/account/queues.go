package account

import "go.uber.org/zap"

// EnqueueMessage queues a received message for delivery.
func (d *Data) EnqueueMessage(msg *Message) {
	if msg == nil {
		d.logger.Warn("enqueue message with nil message")
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.newMessages = append(d.newMessages, *msg)
}

// SetTypingAction records the latest typing state of userID, overwriting any previous one.
func (d *Data) SetTypingAction(userID UserID, isTyping bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.userActions {
		if d.userActions[i].UserID == userID {
			d.userActions[i].IsTyping = isTyping
			return
		}
	}
	d.userActions = append(d.userActions, UserAction{UserID: userID, IsTyping: isTyping})
}

// DrainUnreadMessages groups pending messages by chat and clears the queue.
// Groups appear in first-seen order; messages keep arrival order.
func (d *Data) DrainUnreadMessages() []UnreadChat {
	d.mu.Lock()
	defer d.mu.Unlock()

	var chats []UnreadChat
	index := make(map[ChatID]int)
	for _, msg := range d.newMessages {
		i, ok := index[msg.ChatID]
		if !ok {
			i = len(chats)
			index[msg.ChatID] = i
			chats = append(chats, UnreadChat{ChatID: msg.ChatID})
		}
		chats[i].Messages = append(chats[i].Messages, msg)
	}
	d.newMessages = nil
	return chats
}

// DrainUserUpdates returns the pending user updates in creation order and clears them.
func (d *Data) DrainUserUpdates() []UserUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	updates := d.userUpdates
	d.userUpdates = nil
	return updates
}

// DrainUserActions returns the pending typing actions and clears them.
func (d *Data) DrainUserActions() []UserAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	actions := d.userActions
	d.userActions = nil
	return actions
}

// AddContactRequest remembers an outgoing add-contact request until its result arrives.
func (d *Data) AddContactRequest(requestID uint64, phoneNumber string, userID UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contactRequests = append(d.contactRequests, ContactRequest{
		RequestID:   requestID,
		PhoneNumber: phoneNumber,
		UserID:      userID,
	})
}

// ExtractContactRequest removes and returns the request with requestID.
// It reports false when no such request is pending.
func (d *Data) ExtractContactRequest(requestID uint64) (ContactRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, req := range d.contactRequests {
		if req.RequestID == requestID {
			d.contactRequests = append(d.contactRequests[:i], d.contactRequests[i+1:]...)
			return req, true
		}
	}
	return ContactRequest{}, false
}

// RecordFailedContact queues an add-contact failure.
func (d *Data) RecordFailedContact(phoneNumber string, err error) {
	d.logger.Debug("add contact failed", zap.String("phone", phoneNumber), zap.Error(err))
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failedContacts = append(d.failedContacts, FailedContact{PhoneNumber: phoneNumber, Err: err})
}

// DrainFailedContacts returns the queued failures and clears them.
func (d *Data) DrainFailedContacts() []FailedContact {
	d.mu.Lock()
	defer d.mu.Unlock()
	failed := d.failedContacts
	d.failedContacts = nil
	return failed
}
