package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()

	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TopicLogin, Data: "octo"})

	select {
	case e := <-ch:
		assert.Equal(t, TopicLogin, e.Type)
		assert.Equal(t, "octo", e.Data)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Time.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_TopicFilter(t *testing.T) {
	b := New()

	ch, unsub := b.Subscribe(4, TopicSyncFailed)
	defer unsub()

	b.Publish(Event{Type: TopicSyncCompleted})
	b.Publish(Event{Type: TopicSyncFailed})

	e := <-ch
	assert.Equal(t, TopicSyncFailed, e.Type)
	assert.Empty(t, ch)
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	b := New()

	ch, unsub := b.Subscribe(1)
	defer unsub()

	for range 5 {
		b.Publish(Event{Type: TopicSchedulerStatus})
	}

	assert.Len(t, ch, 1)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()

	ch, unsub := b.Subscribe(1)
	require.Equal(t, 1, b.Subscribers())

	unsub()
	unsub()

	assert.Equal(t, 0, b.Subscribers())

	_, ok := <-ch
	assert.False(t, ok)

	assert.NotPanics(t, func() { b.Publish(Event{Type: TopicLogout}) })
}
