package client

import (
	"sync"

	"github.com/luma/parley/protocol"
)

// Delivery is one notification and its raw payload as taken off the
// wire.
type Delivery struct {
	Notification protocol.Notification
	Payload      *protocol.BytesBuffer
}

// NotificationQueue is a thread-safe FIFO between the read loop and
// the consumer. The consumer polls Pop, typically once per UI tick; it
// never blocks.
type NotificationQueue struct {
	mu      sync.Mutex
	pending []Delivery
}

func NewNotificationQueue() *NotificationQueue {
	return &NotificationQueue{}
}

func (q *NotificationQueue) Push(notif protocol.Notification, payload *protocol.BytesBuffer) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, Delivery{
		Notification: notif,
		Payload:      payload,
	})
}

// Pop removes and returns the oldest delivery, or false when the queue
// is empty.
func (q *NotificationQueue) Pop() (Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Delivery{}, false
	}

	delivery := q.pending[0]
	q.pending = q.pending[1:]

	return delivery, true
}

// Len reports how many deliveries are waiting.
func (q *NotificationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Signal is what a popped delivery means to the consumer.
type Signal interface {
	signal()
}

// ContactReceived carries the contact a lookup produced.
type ContactReceived struct {
	Contact protocol.Contact
}

func (ContactReceived) signal() {}

// ContactLookupFailed reports why a lookup produced nothing.
type ContactLookupFailed struct {
	Reason string
}

func (ContactLookupFailed) signal() {}

// HandleNotification maps a delivery onto the consumer's signal,
// decoding the payload as needed. Notifications with no consumer-side
// meaning map to nil.
func HandleNotification(delivery Delivery) Signal {
	switch delivery.Notification {
	case protocol.NotifReceiveContactInfo:
		contact, err := protocol.DecodeContact(delivery.Payload)
		if err != nil {
			return ContactLookupFailed{Reason: "Error while retrieving user information"}
		}

		return ContactReceived{Contact: *contact}

	case protocol.NotifUserNotFound:
		return ContactLookupFailed{Reason: "User not found"}

	default:
		return nil
	}
}
