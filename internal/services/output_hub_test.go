package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan string) []string {
	var lines []string
	for line := range ch {
		lines = append(lines, line)
	}
	return lines
}

func TestOutputHub_ReplayAndLive(t *testing.T) {
	hub := NewOutputHub()
	hub.Open("r1")
	hub.Publish("r1", "a")

	sub, ok := hub.Subscribe("r1")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, sub.History)

	hub.Publish("r1", "b")
	hub.Publish("r1", "c")
	hub.Close("r1")

	assert.Equal(t, []string{"b", "c"}, drain(sub.Lines))
	assert.False(t, sub.Dropped(), "a closed stream is not a drop")
	assert.False(t, hub.Active("r1"))
	sub.Cancel()
}

func TestOutputHub_UnknownStream(t *testing.T) {
	hub := NewOutputHub()

	_, ok := hub.Subscribe("missing")
	assert.False(t, ok)

	hub.Publish("missing", "ignored")
	hub.Close("missing")
}

func TestOutputHub_Cancel(t *testing.T) {
	hub := NewOutputHub()
	hub.Open("r1")

	sub, ok := hub.Subscribe("r1")
	require.True(t, ok)
	sub.Cancel()
	sub.Cancel()

	_, open := <-sub.Lines
	assert.False(t, open)

	hub.Publish("r1", "after cancel")
	hub.Close("r1")
}

func TestOutputHub_SlowSubscriberDropped(t *testing.T) {
	hub := NewOutputHub()
	hub.Open("r1")

	sub, ok := hub.Subscribe("r1")
	require.True(t, ok)

	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Publish("r1", "line")
	}

	assert.Len(t, drain(sub.Lines), subscriberBuffer)
	assert.True(t, sub.Dropped())
	assert.True(t, hub.Active("r1"), "the stream outlives a dropped subscriber")

	rejoined, ok := hub.Subscribe("r1")
	require.True(t, ok)
	assert.Len(t, rejoined.History, subscriberBuffer+1, "a new subscription replays every line")

	sub.Cancel()
	hub.Close("r1")
	assert.False(t, rejoined.Dropped())
}
