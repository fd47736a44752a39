package services

import (
	"sync"
	"sync/atomic"
)

// OutputEvent is the event name each forwarded script line is published under.
const OutputEvent = "python-output"

const subscriberBuffer = 256

type subscriber struct {
	lines   chan string
	dropped atomic.Bool
}

type outputStream struct {
	history []string
	subs    map[*subscriber]struct{}
}

// OutputHub fans out the lines of running reports to any number of
// subscribers. A subscriber joining late first receives the lines already
// published. Streams exist only while their report runs; finished output
// lives in the database.
type OutputHub struct {
	mu      sync.Mutex
	streams map[string]*outputStream
}

func NewOutputHub() *OutputHub {
	return &OutputHub{streams: make(map[string]*outputStream)}
}

// Open starts a stream for reportID. Opening an open stream is a no-op.
func (h *OutputHub) Open(reportID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.streams[reportID]; !ok {
		h.streams[reportID] = &outputStream{subs: make(map[*subscriber]struct{})}
	}
}

// Publish records line and hands it to every subscriber. A subscriber whose
// buffer is full is dropped rather than stalling the script; its channel is
// closed with Dropped reporting true.
func (h *OutputHub) Publish(reportID, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stream, ok := h.streams[reportID]
	if !ok {
		return
	}

	stream.history = append(stream.history, line)
	for sub := range stream.subs {
		select {
		case sub.lines <- line:
		default:
			sub.dropped.Store(true)
			delete(stream.subs, sub)
			close(sub.lines)
		}
	}
}

// Close ends the stream: every subscriber channel is closed.
func (h *OutputHub) Close(reportID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stream, ok := h.streams[reportID]
	if !ok {
		return
	}

	for sub := range stream.subs {
		close(sub.lines)
	}
	delete(h.streams, reportID)
}

// Subscription is a live view of one report's output.
type Subscription struct {
	// History holds the lines published before the subscription started.
	History []string
	// Lines delivers subsequent lines and is closed when the report ends
	// or the subscriber falls behind.
	Lines <-chan string
	// Dropped reports whether Lines was closed because the subscriber fell
	// behind. The report is then still running.
	Dropped func() bool
	// Cancel releases the subscription.
	Cancel func()
}

// Subscribe attaches to a running report. ok is false when no stream is open.
func (h *OutputHub) Subscribe(reportID string) (*Subscription, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stream, ok := h.streams[reportID]
	if !ok {
		return nil, false
	}

	sub := &subscriber{lines: make(chan string, subscriberBuffer)}
	stream.subs[sub] = struct{}{}

	history := make([]string, len(stream.history))
	copy(history, stream.history)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if s, ok := h.streams[reportID]; ok {
				if _, live := s.subs[sub]; live {
					delete(s.subs, sub)
					close(sub.lines)
				}
			}
		})
	}

	return &Subscription{
		History: history,
		Lines:   sub.lines,
		Dropped: sub.dropped.Load,
		Cancel:  cancel,
	}, true
}

// Active reports whether reportID currently has an open stream.
func (h *OutputHub) Active(reportID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.streams[reportID]
	return ok
}
