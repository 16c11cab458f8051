package chat

import (
	"strings"

	"sharedish/models"
)

// Sender pushes relay events to individual connections. Implemented by the
// websocket gateway. Both methods must not block: a slow subscriber is the
// implementation's problem, never the relay's.
type Sender interface {
	Deliver(connID string, msg *models.Message)
	DeliverError(connID string, reason string)
}

// Relay sequences the receive → persist → fan out protocol. Persistence
// strictly precedes broadcast: a message is only ever delivered after the
// store has durably recorded it, and a persistence failure aborts the send
// before any subscriber sees it.
type Relay struct {
	store Store
	rooms *Registry
	out   Sender
	locks *keyedMutex
}

func NewRelay(store Store, rooms *Registry, out Sender) *Relay {
	return &Relay{
		store: store,
		rooms: rooms,
		out:   out,
		locks: newKeyedMutex(),
	}
}

// OnJoin subscribes the connection to the post's room. Nothing is
// persisted; the connection simply starts receiving broadcasts.
func (r *Relay) OnJoin(connID, postKey string) {
	r.rooms.Join(connID, postKey)
}

// OnDisconnect drops the connection's subscription. Idempotent.
func (r *Relay) OnDisconnect(connID string) {
	r.rooms.Leave(connID)
}

// OnSend persists the message and fans it out to every current subscriber
// of the conversation, the sender's own connection included, so clients
// render the authoritative server-assigned timestamp instead of a local
// echo. The per-conversation lock spans persist → snapshot → push, so the
// order observed by any subscriber equals the store's append order.
func (r *Relay) OnSend(connID, postKey, sender, text string) (*models.Message, error) {
	// Validation happens before any persistence attempt.
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if strings.TrimSpace(postKey) == "" {
		return nil, ErrInvalidPostKey
	}
	if strings.TrimSpace(sender) == "" {
		return nil, ErrInvalidSender
	}

	unlock := r.locks.Lock(postKey)
	defer unlock()

	// Conversations are created lazily on first message, seeded with the
	// sender as participant.
	if _, err := r.store.GetOrCreate(postKey, sender); err != nil {
		return nil, err
	}
	msg, err := r.store.Append(postKey, sender, text)
	if err != nil {
		return nil, err
	}

	for _, id := range r.rooms.SubscribersOf(postKey) {
		r.out.Deliver(id, msg)
	}
	return msg, nil
}
