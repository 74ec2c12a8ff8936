package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockConfig configures a mock backend for deterministic testing.
type MockConfig struct {
	// BackendName is the name returned by Name(). Defaults to "mock".
	BackendName string

	// Model is the default model reported by the mock.
	Model string

	// Responses contains scripted event sequences. Each run pops the next
	// sequence from the front.
	Responses [][]Event

	// EventDelay simulates latency between emitted events.
	EventDelay time.Duration

	// FailAfterN causes RunStreaming to return FailErr after emitting N
	// events. 0 means no failure injection.
	FailAfterN int

	// FailErr is the error returned when FailAfterN is triggered.
	FailErr error

	// Record enables recording of all invocations for later assertion.
	Record bool
}

// Mock implements Backend with scripted responses for deterministic testing
// without launching subprocesses.
type Mock struct {
	mu        sync.Mutex
	cfg       MockConfig
	callIndex int
	recorded  []Invocation
}

var _ Backend = (*Mock)(nil)

// NewMock creates a new mock backend with the given configuration.
func NewMock(cfg MockConfig) *Mock {
	if cfg.BackendName == "" {
		cfg.BackendName = "mock"
	}
	if cfg.Model == "" {
		cfg.Model = "mock-model"
	}
	return &Mock{cfg: cfg}
}

// Name returns the mock backend name.
func (m *Mock) Name() string { return m.cfg.BackendName }

// Executable returns a fake binary name derived from the backend name.
func (m *Mock) Executable() string { return m.cfg.BackendName }

// DefaultModel returns the configured mock model.
func (m *Mock) DefaultModel() string { return m.cfg.Model }

// RunStreaming emits the next scripted event sequence via the callback.
func (m *Mock) RunStreaming(ctx context.Context, inv Invocation, onEvent func(Event) error) error {
	m.mu.Lock()
	if m.cfg.Record {
		m.recorded = append(m.recorded, inv)
	}
	idx := m.callIndex
	m.callIndex++
	m.mu.Unlock()

	if idx >= len(m.cfg.Responses) {
		return fmt.Errorf("mock: no more scripted responses (call %d, have %d)", idx, len(m.cfg.Responses))
	}

	events := m.cfg.Responses[idx]
	for i, ev := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if m.cfg.FailAfterN > 0 && i >= m.cfg.FailAfterN {
			if m.cfg.FailErr != nil {
				return m.cfg.FailErr
			}
			return fmt.Errorf("mock: injected failure after %d events", m.cfg.FailAfterN)
		}

		if m.cfg.EventDelay > 0 {
			time.Sleep(m.cfg.EventDelay)
		}

		if err := onEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// RunAggregate runs the next scripted sequence and collects deltas and usage
// into a Result. An in-band error event becomes a ProtocolError.
func (m *Mock) RunAggregate(ctx context.Context, inv Invocation) (*Result, error) {
	var sb strings.Builder
	res := &Result{}
	err := m.RunStreaming(ctx, inv, func(ev Event) error {
		switch ev.Kind {
		case EventMessageDelta:
			if ev.MessageDelta != nil {
				sb.WriteString(ev.MessageDelta.Text)
			}
		case EventUsage:
			if ev.Usage != nil {
				res.Usage = *ev.Usage
			}
		case EventError:
			if ev.Error != nil {
				return &ProtocolError{Backend: m.cfg.BackendName, Message: ev.Error.Message}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Content = sb.String()
	return res, nil
}

// Recorded returns all invocations received when Record is true.
func (m *Mock) Recorded() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Invocation, len(m.recorded))
	copy(out, m.recorded)
	return out
}

// CallCount returns how many runs have been started.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callIndex
}
