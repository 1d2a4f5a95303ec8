package relay

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/zulandar/synapse/internal/feed"
)

// WriterSink prints every event as a text line. `synapse serve --echo`
// uses it to tail both channels on the terminal.
type WriterSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterSink creates a WriterSink on out.
func NewWriterSink(out io.Writer) *WriterSink {
	return &WriterSink{out: out}
}

func (w *WriterSink) Name() string                      { return "writer" }
func (w *WriterSink) Connect(ctx context.Context) error { return nil }
func (w *WriterSink) Close() error                      { return nil }

// Send writes one line for evt.
func (w *WriterSink) Send(ctx context.Context, evt feed.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintln(w.out, Text(evt)); err != nil {
		return fmt.Errorf("relay: write: %w", err)
	}
	return nil
}

// MockSink implements Sink for testing. It records sent events.
type MockSink struct {
	mu         sync.Mutex
	name       string
	connectErr error
	sendErr    error
	connected  bool
	closed     bool
	sent       []feed.Event
}

// NewMockSink creates a MockSink.
func NewMockSink(name string) *MockSink {
	return &MockSink{name: name}
}

func (m *MockSink) Name() string { return m.name }

// Connect marks the sink connected, or returns the configured error.
func (m *MockSink) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

// Send records evt.
func (m *MockSink) Send(ctx context.Context, evt feed.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("mock sink: not connected")
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, evt)
	return nil
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.connected = false
	return nil
}

// --- Test helpers ---

// FailConnect makes the next Connect return err.
func (m *MockSink) FailConnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// FailSend makes every Send return err.
func (m *MockSink) FailSend(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// AllSent returns a copy of all recorded events.
func (m *MockSink) AllSent() []feed.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]feed.Event, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentCount returns the number of recorded events.
func (m *MockSink) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// Connected reports whether Connect succeeded and Close has not been called.
func (m *MockSink) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Closed reports whether Close was called.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
