// Package discovery implements the discovery session: one run of listening
// for device configuration announcements on a wildcard topic.
//
// A session subscribes to the wildcard configuration topic, parses every
// retained configuration message it receives into a typed component and
// reports each one to an observer. The session's completion handle resolves
// exactly once, whichever of the three terminating events happens first:
// the discovery timer fires, the caller stops the session, or the subscribe
// request fails.
package discovery

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/homestream/component"
	"github.com/c360/homestream/errors"
	"github.com/c360/homestream/metric"
	"github.com/c360/homestream/topic"
	"github.com/c360/homestream/transport"
)

// ErrStopped is the resolution error of a deliberately stopped session.
// Callers distinguish a voluntary stop from a transport failure with
// errors.Is(err, ErrStopped) rather than by inspecting message text.
var ErrStopped = stderrors.New("discovery stopped")

// State is the lifecycle state of a session.
type State int

// Session lifecycle states. Completed is terminal.
const (
	StateCreated State = iota
	StateRunning
	StateCompleted
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Observer is notified of each newly discovered component. It is invoked
// synchronously on the message-delivery path, once per accepted
// configuration message, in arrival order. Observers must not block:
// delivery of further messages stalls behind a slow observer.
type Observer interface {
	ComponentDiscovered(id topic.ID, c component.Component)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(id topic.ID, c component.Component)

// ComponentDiscovered implements Observer.
func (f ObserverFunc) ComponentDiscovered(id topic.ID, c component.Component) {
	f(id, c)
}

// ComponentFactory turns a raw configuration payload into a typed component
// descriptor. component.Registry implements it; tests substitute stubs.
type ComponentFactory interface {
	Create(ownerID string, id topic.ID, rawConfig []byte) (component.Component, error)
}

// Session manages the full lifecycle of one discovery run: subscribe,
// filter incoming messages, parse and report components, and guarantee
// single, race-free completion.
//
// A session is created for one run and is not reused: once completed it
// stays completed, and Start rejects a second call. Message delivery, the
// timer, and Stop may all race from different goroutines; a mutex guards
// the three completion paths so the completion handle resolves exactly
// once.
type Session struct {
	ownerID string
	runID   string
	factory ComponentFactory
	logger  *slog.Logger
	metrics *metric.Metrics

	mu        sync.Mutex
	state     State
	topic     string
	conn      transport.Connection // present only while running; non-owning
	observer  Observer             // present only while running
	timer     *time.Timer          // present only while a duration > 0 is running
	startedAt time.Time
	completed *Completion
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics wires discovery metrics into the given collectors.
func WithMetrics(m *metric.Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

// NewSession creates a session discovering components for the thing
// identified by ownerID, using factory to parse configuration payloads.
func NewSession(ownerID string, factory ComponentFactory, opts ...SessionOption) *Session {
	s := &Session{
		ownerID: ownerID,
		runID:   uuid.NewString(),
		factory: factory,
		logger:  slog.Default(),
		state:   StateCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("run_id", s.runID, "owner", ownerID)
	return s
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start arms the session for a single discovery run.
//
// It subscribes to the wildcard configuration topic derived from spec and
// returns the completion handle for the discovery window. With duration > 0
// a one-shot timer closes the window; with duration == 0 the handle
// resolves immediately after a successful subscribe and discovery runs
// until Stop is called.
//
// A failed subscribe does not return an error here: it resolves the handle
// with the failure cause, exactly like the other terminating events, so
// callers observe every outcome in one place. Start itself errors only on
// violated preconditions (nil observer, negative duration, session not in
// the created state).
func (s *Session) Start(
	conn transport.Connection, duration time.Duration, spec topic.ID, observer Observer,
) (*Completion, error) {
	if observer == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil observer"), "Session", "Start", "observer validation")
	}
	if duration < 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("negative duration %v", duration), "Session", "Start", "duration validation")
	}

	s.mu.Lock()
	if s.state != StateCreated {
		state := s.state
		s.mu.Unlock()
		if state == StateRunning {
			return nil, errors.WrapFatal(errors.ErrAlreadyStarted, "Session", "Start", "state check")
		}
		return nil, errors.WrapFatal(errors.ErrSessionCompleted, "Session", "Start", "state check")
	}
	s.state = StateRunning
	s.topic = spec.SubscriptionTopic(topic.ConfigSuffix)
	s.conn = conn
	s.observer = observer
	s.startedAt = time.Now()
	s.completed = newCompletion()
	c := s.completed
	subscribeTopic := s.topic
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
	}
	s.logger.Debug("starting discovery", "topic", subscribeTopic, "duration", duration)

	if err := conn.Subscribe(subscribeTopic, s); err != nil {
		s.fail(err)
		return c, nil
	}

	s.mu.Lock()
	if s.state == StateCompleted {
		// Stop raced the subscribe; its cleanup may have missed a
		// subscription that only now exists.
		s.mu.Unlock()
		_ = conn.Unsubscribe(subscribeTopic, s)
		return c, nil
	}
	if duration > 0 {
		s.timer = time.AfterFunc(duration, s.expire)
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	// No timeout: the window closes immediately but the subscription and
	// observer stay active until an explicit Stop.
	s.resolveOK(c)
	return c, nil
}

// OnMessage implements transport.MessageSink. It is invoked by the transport
// for every message matching the subscription, including sibling topics the
// wildcard happens to match.
func (s *Session) OnMessage(msgTopic string, payload []byte) {
	if !strings.HasSuffix(msgTopic, "/"+topic.ConfigSuffix) {
		if s.metrics != nil {
			s.metrics.MessagesIgnored.Inc()
		}
		return
	}

	id, err := topic.Parse(msgTopic)
	if err != nil {
		s.logger.Debug("ignoring unparsable configuration topic", "topic", msgTopic, "error", err)
		if s.metrics != nil {
			s.metrics.ConfigsRejected.Inc()
		}
		return
	}

	comp, err := s.factory.Create(s.ownerID, id, payload)
	if err != nil {
		// One malformed device config must not abort discovery for all
		// other devices.
		s.logger.Debug("ignoring invalid component configuration",
			"topic", msgTopic, "object", id.ObjectID, "error", err)
		if s.metrics != nil {
			s.metrics.ConfigsRejected.Inc()
		}
		return
	}

	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer == nil {
		// Completed while the message was in flight; silent drop.
		return
	}

	s.logger.Debug("component discovered",
		"kind", id.Component, "object", id.ObjectID, "node", id.NodeID)
	if s.metrics != nil {
		s.metrics.ComponentsDiscovered.WithLabelValues(id.Component).Inc()
	}
	observer.ComponentDiscovered(id, comp)
}

// Stop closes the discovery window and releases the subscription. The
// completion handle resolves with ErrStopped so callers can tell a
// deliberate stop from a transport failure.
//
// Stop is idempotent: calling it on a session that has already completed,
// or calling it twice, has no observable effect beyond the first
// resolution. Stopping a never-started session is a no-op.
func (s *Session) Stop() {
	s.fail(ErrStopped)
}

// expire is the timer path: the discovery window closed naturally.
func (s *Session) expire() {
	s.mu.Lock()
	if s.state == StateCompleted {
		s.mu.Unlock()
		return
	}
	s.state = StateCompleted
	conn, subscribedTopic := s.conn, s.topic
	c := s.completed
	s.timer = nil
	s.observer = nil
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Unsubscribe(subscribedTopic, s); err != nil {
			s.logger.Warn("unsubscribe failed during completion", "topic", subscribedTopic, "error", err)
		}
	}

	s.logger.Debug("discovery window closed", "topic", subscribedTopic)
	s.resolveOK(c)
	if s.metrics != nil {
		s.metrics.SessionsActive.Dec()
	}
}

// fail is the shared teardown for the subscribe-failure and stop paths:
// cancel any armed timer, clear the observer, release the subscription if
// the connection is still resolvable, and resolve the handle with cause.
func (s *Session) fail(cause error) {
	s.mu.Lock()
	if s.completed == nil {
		// Never started; nothing to tear down.
		s.mu.Unlock()
		return
	}
	alreadyCompleted := s.state == StateCompleted
	s.state = StateCompleted
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.observer = nil
	conn, subscribedTopic := s.conn, s.topic
	c := s.completed
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		// Connection gone means skip cleanup, not an error; a surviving
		// connection may still refuse, which only merits a log line.
		if err := conn.Unsubscribe(subscribedTopic, s); err != nil {
			s.logger.Warn("unsubscribe failed during teardown", "topic", subscribedTopic, "error", err)
		}
	}

	if c.resolve(cause) {
		outcome := metric.OutcomeError
		if stderrors.Is(cause, ErrStopped) {
			outcome = metric.OutcomeStopped
			s.logger.Debug("discovery stopped", "topic", subscribedTopic)
		} else {
			s.logger.Warn("discovery failed", "topic", subscribedTopic, "error", cause)
		}
		s.recordCompletion(outcome)
	}
	if !alreadyCompleted && s.metrics != nil {
		s.metrics.SessionsActive.Dec()
	}
}

// resolveOK resolves the handle successfully and records metrics once.
func (s *Session) resolveOK(c *Completion) {
	if c.resolve(nil) {
		s.recordCompletion(metric.OutcomeOK)
	}
}

func (s *Session) recordCompletion(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionsCompleted.WithLabelValues(outcome).Inc()
	s.metrics.SessionDuration.Observe(time.Since(s.startedAt).Seconds())
}
