package store

import (
	"testing"
	"time"

	"gourdtalk_client/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2025, 1, 23, 10, 0, 0, 0, time.UTC)

func msg(id, sender, recipient, body string, ts time.Time, delivery domain.DeliveryState) domain.Message {
	return domain.Message{
		ID:          id,
		SenderID:    sender,
		RecipientID: recipient,
		Body:        body,
		Timestamp:   ts,
		Delivery:    delivery,
	}
}

// History backfill followed by the same message over the realtime
// channel must leave exactly one stored copy.
func TestUpsert_DuplicateIDFromBothPaths(t *testing.T) {
	s := NewMessageStore()

	s.Upsert("B", msg("m1", "B", "A", "hello", base, domain.DeliverySent))
	s.Upsert("B", msg("m1", "B", "A", "hello", base, domain.DeliverySent))

	msgs := s.List("B")
	assert.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestUpsert_MergeNeverRegresses(t *testing.T) {
	s := NewMessageStore()

	s.Upsert("B", msg("m1", "A", "B", "hi", base, domain.DeliverySent))
	read := msg("m1", "A", "B", "hi", base, domain.DeliverySent)
	read.Read = true
	s.Upsert("B", read)

	// a late pending duplicate must not pull the message backwards
	stale := msg("m1", "A", "B", "hi", base, domain.DeliveryPending)
	stored := s.Upsert("B", stale)

	assert.Equal(t, domain.DeliverySent, stored.Delivery)
	assert.True(t, stored.Read)
}

func TestUpsert_ConfirmedReplacesPendingTwin(t *testing.T) {
	s := NewMessageStore()

	pending := msg("tmp-1", "A", "B", "hi", base, domain.DeliveryPending)
	s.Upsert("B", pending)

	confirmed := msg("srv-9", "A", "B", "hi", base.Add(2*time.Second), domain.DeliverySent)
	stored := s.Upsert("B", confirmed)

	msgs := s.List("B")
	assert.Len(t, msgs, 1)
	assert.Equal(t, "srv-9", stored.ID)
	assert.Equal(t, domain.DeliverySent, stored.Delivery)
}

func TestUpsert_TwinOutsideWindowIsNotReplaced(t *testing.T) {
	s := NewMessageStore()

	s.Upsert("B", msg("tmp-1", "A", "B", "hi", base, domain.DeliveryPending))
	s.Upsert("B", msg("srv-9", "A", "B", "hi", base.Add(time.Minute), domain.DeliverySent))

	assert.Len(t, s.List("B"), 2)
}

func TestUpsert_FailedTwinReplacedOnRetry(t *testing.T) {
	s := NewMessageStore()

	failed := msg("tmp-1", "A", "B", "hi", base, domain.DeliveryFailed)
	s.Upsert("B", failed)

	confirmed := msg("srv-9", "A", "B", "hi", base.Add(time.Second), domain.DeliverySent)
	s.Upsert("B", confirmed)

	msgs := s.List("B")
	assert.Len(t, msgs, 1)
	assert.Equal(t, "srv-9", msgs[0].ID)
}

// Messages come back in non-decreasing timestamp order regardless of
// the interleaving of backfill and live push.
func TestList_TimestampOrdering(t *testing.T) {
	s := NewMessageStore()

	s.Upsert("B", msg("m3", "B", "A", "three", base.Add(30*time.Second), domain.DeliverySent))
	s.Upsert("B", msg("m1", "B", "A", "one", base, domain.DeliverySent))
	s.Upsert("B", msg("m4", "A", "B", "four", base.Add(45*time.Second), domain.DeliverySent))
	s.Upsert("B", msg("m2", "A", "B", "two", base.Add(15*time.Second), domain.DeliverySent))

	msgs := s.List("B")
	assert.Len(t, msgs, 4)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m4", msgs[3].ID)
}

func TestList_EqualTimestampsKeepInsertionOrder(t *testing.T) {
	s := NewMessageStore()

	s.Upsert("B", msg("m1", "B", "A", "first", base, domain.DeliverySent))
	s.Upsert("B", msg("m2", "B", "A", "second", base, domain.DeliverySent))

	msgs := s.List("B")
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestUnreadIDsFrom(t *testing.T) {
	s := NewMessageStore()

	s.Upsert("B", msg("m1", "B", "A", "in", base, domain.DeliverySent))
	mine := msg("m2", "A", "B", "out", base.Add(time.Second), domain.DeliverySent)
	s.Upsert("B", mine)

	// own messages never count as unread
	assert.Equal(t, []string{"m1"}, s.UnreadIDsFrom("B"))
	assert.True(t, s.HasUnreadFrom("B"))

	s.MarkRead("B", []string{"m1"})
	assert.Empty(t, s.UnreadIDsFrom("B"))
	assert.False(t, s.HasUnreadFrom("B"))
}

func TestRemoveAndClear(t *testing.T) {
	s := NewMessageStore()

	s.Upsert("B", msg("m1", "B", "A", "one", base, domain.DeliverySent))
	s.Upsert("C", msg("m2", "C", "A", "two", base, domain.DeliverySent))

	s.Remove("B")
	assert.Empty(t, s.List("B"))
	assert.Len(t, s.List("C"), 1)

	s.Clear()
	assert.Empty(t, s.List("C"))
}
