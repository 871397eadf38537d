package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagekit/triagekit/pkg/bugstore"
)

func receiveEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscriber channel closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_PublishReachesJobSubscribers(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Subscribe("job-1")
	b := hub.Subscribe("job-1")
	other := hub.Subscribe("job-2")

	hub.Publish(Event{JobID: "job-1", Status: bugstore.JobStatusRunning, Logs: []string{"started"}})

	for _, sub := range []*Subscriber{a, b} {
		ev := receiveEvent(t, sub)
		assert.Equal(t, bugstore.JobStatusRunning, ev.Status)
		assert.Equal(t, []string{"started"}, ev.Logs)
	}

	select {
	case ev := <-other.Events():
		t.Fatalf("job-2 subscriber received event for job-1: %+v", ev)
	default:
	}
}

func TestHub_NoReplayBeforeSubscribe(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish(Event{JobID: "job-1", Status: bugstore.JobStatusRunning})

	sub := hub.Subscribe("job-1")
	select {
	case ev := <-sub.Events():
		t.Fatalf("received replayed event: %+v", ev)
	default:
	}

	hub.Publish(Event{JobID: "job-1", Status: bugstore.JobStatusCompleted})
	ev := receiveEvent(t, sub)
	assert.Equal(t, bugstore.JobStatusCompleted, ev.Status)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("job-1")
	require.Equal(t, 1, hub.SubscriberCount("job-1"))

	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.SubscriberCount("job-1"))

	_, ok := <-sub.Events()
	assert.False(t, ok, "channel should be closed after Unsubscribe")

	// Publishing after the last unsubscribe is a no-op.
	hub.Publish(Event{JobID: "job-1", Status: bugstore.JobStatusFailed})

	// Double unsubscribe must not panic.
	hub.Unsubscribe(sub)
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewHub(nil)
	slow := hub.Subscribe("job-1")
	fast := hub.Subscribe("job-1")

	// Overfill the slow subscriber's buffer without draining it.
	for i := 0; i < DefaultBuffer+5; i++ {
		hub.Publish(Event{JobID: "job-1", Status: bugstore.JobStatusRunning})
		ev := receiveEvent(t, fast)
		assert.Equal(t, bugstore.JobStatusRunning, ev.Status)
	}

	// The slow subscriber kept the first DefaultBuffer events; the rest
	// were dropped rather than blocking the publisher.
	count := 0
	for {
		select {
		case <-slow.Events():
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, DefaultBuffer, count)
}
