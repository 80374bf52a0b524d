package domain

import "time"

// DeliveryState tracks how far a message has made it to the server.
type DeliveryState string

const (
	// DeliveryPending created locally, REST send not yet confirmed
	DeliveryPending DeliveryState = "pending"
	// DeliverySent confirmed by the server, carries a server id
	DeliverySent DeliveryState = "sent"
	// DeliveryFailed REST send rejected, kept visible for retry
	DeliveryFailed DeliveryState = "failed"
)

// rank orders delivery states so merges never regress a confirmed send.
func (d DeliveryState) rank() int {
	switch d {
	case DeliveryPending:
		return 0
	case DeliveryFailed:
		return 1
	case DeliverySent:
		return 2
	}
	return -1
}

// MoreAdvancedThan reports whether d is further along than other.
func (d DeliveryState) MoreAdvancedThan(other DeliveryState) bool {
	return d.rank() > other.rank()
}

// Message is one chat message between two users. Wire field names follow
// the backend contract: the counterpart slot is called "user".
type Message struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"sender"`
	RecipientID string        `json:"user"`
	Body        string        `json:"message"`
	Timestamp   time.Time     `json:"timestamp"`
	Read        bool          `json:"read"`
	Delivery    DeliveryState `json:"-"`
}

// Counterpart returns the other party of the message relative to
// currentUserID. ok is false when neither party is the current user.
func (m Message) Counterpart(currentUserID string) (string, bool) {
	switch currentUserID {
	case m.SenderID:
		return m.RecipientID, true
	case m.RecipientID:
		return m.SenderID, true
	}
	return "", false
}

// SendPayload is the POST /chat/messages request body.
type SendPayload struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"user"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
