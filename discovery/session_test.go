package discovery

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/homestream/component"
	"github.com/c360/homestream/errors"
	"github.com/c360/homestream/metric"
	"github.com/c360/homestream/topic"
	"github.com/c360/homestream/transport"
)

// fakeConn implements transport.Connection in-memory.
type fakeConn struct {
	mu            sync.Mutex
	subscribeErr  error
	sinks         map[string]transport.MessageSink
	unsubscribes  int
	subscriptions int
}

func newFakeConn() *fakeConn {
	return &fakeConn{sinks: make(map[string]transport.MessageSink)}
}

func (f *fakeConn) Subscribe(topicFilter string, sink transport.MessageSink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.sinks[topicFilter] = sink
	f.subscriptions++
	return nil
}

func (f *fakeConn) Unsubscribe(topicFilter string, _ transport.MessageSink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sinks[topicFilter]; ok {
		delete(f.sinks, topicFilter)
		f.unsubscribes++
	}
	return nil
}

func (f *fakeConn) Publish(string, []byte) error { return nil }

// deliver pushes a message to every registered sink, the way a broker
// delivers wildcard matches.
func (f *fakeConn) deliver(msgTopic string, payload []byte) {
	f.mu.Lock()
	sinks := make([]transport.MessageSink, 0, len(f.sinks))
	for _, sink := range f.sinks {
		sinks = append(sinks, sink)
	}
	f.mu.Unlock()
	for _, sink := range sinks {
		sink.OnMessage(msgTopic, payload)
	}
}

func (f *fakeConn) subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks) > 0
}

// recorder implements Observer.
type recorder struct {
	mu    sync.Mutex
	ids   []topic.ID
	comps []component.Component
}

func (r *recorder) ComponentDiscovered(id topic.ID, c component.Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	r.comps = append(r.comps, c)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// countingFactory wraps a factory and counts calls.
type countingFactory struct {
	inner ComponentFactory
	mu    sync.Mutex
	calls int
}

func (cf *countingFactory) Create(ownerID string, id topic.ID, raw []byte) (component.Component, error) {
	cf.mu.Lock()
	cf.calls++
	cf.mu.Unlock()
	return cf.inner.Create(ownerID, id, raw)
}

func (cf *countingFactory) callCount() int {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return cf.calls
}

func discoverAll() topic.ID {
	return topic.ID{Prefix: "devices"}
}

var switchPayload = []byte(`{"name":"Bedroom Switch","command_topic":"devices/switch/bedroom/set"}`)

func TestDiscoveryReportsComponent(t *testing.T) {
	conn := newFakeConn()
	obs := &recorder{}
	session := NewSession("bridge-1", component.DefaultRegistry())

	c, err := session.Start(conn, 50*time.Millisecond, discoverAll(), obs)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, session.State())

	conn.deliver("devices/switch/bedroom/config", switchPayload)

	require.Equal(t, 1, obs.count())
	assert.Equal(t, topic.ID{Prefix: "devices", Component: "switch", ObjectID: "bedroom"}, obs.ids[0])
	meta := obs.comps[0].Meta()
	assert.Equal(t, component.KindSwitch, meta.Kind)
	assert.Equal(t, "Bedroom Switch", meta.Name)
	assert.Equal(t, "bridge-1", meta.Owner)

	// Natural timeout resolves the handle successfully and releases the
	// subscription.
	require.NoError(t, c.Await(t.Context()))
	assert.False(t, conn.subscribed())
	assert.Equal(t, StateCompleted, session.State())
}

func TestDiscoveryDeliversInArrivalOrder(t *testing.T) {
	conn := newFakeConn()
	obs := &recorder{}
	session := NewSession("bridge-1", component.DefaultRegistry())

	_, err := session.Start(conn, 0, discoverAll(), obs)
	require.NoError(t, err)
	defer session.Stop()

	conn.deliver("devices/switch/a/config", switchPayload)
	conn.deliver("devices/switch/b/config", switchPayload)
	conn.deliver("devices/switch/c/config", switchPayload)

	require.Equal(t, 3, obs.count())
	assert.Equal(t, []string{"a", "b", "c"},
		[]string{obs.ids[0].ObjectID, obs.ids[1].ObjectID, obs.ids[2].ObjectID})
}

func TestUnrelatedMessagesAreIgnored(t *testing.T) {
	conn := newFakeConn()
	obs := &recorder{}
	factory := &countingFactory{inner: component.DefaultRegistry()}
	session := NewSession("bridge-1", factory)

	_, err := session.Start(conn, 0, discoverAll(), obs)
	require.NoError(t, err)
	defer session.Stop()

	// Sibling topics from the same device tree that the wildcard matches.
	conn.deliver("devices/switch/bedroom/state", []byte(`ON`))
	conn.deliver("devices/switch/bedroom/set", []byte(`OFF`))
	conn.deliver("devices/sensor/temp/availability", []byte(`online`))

	assert.Equal(t, 0, factory.callCount(), "no factory call for unrelated messages")
	assert.Equal(t, 0, obs.count())
}

func TestInvalidConfigIsDroppedAndSessionContinues(t *testing.T) {
	conn := newFakeConn()
	obs := &recorder{}
	session := NewSession("bridge-1", component.DefaultRegistry())

	c, err := session.Start(conn, 0, discoverAll(), obs)
	require.NoError(t, err)
	defer session.Stop()

	conn.deliver("devices/switch/bedroom/config", []byte(`{not json`))
	conn.deliver("devices/switch/bedroom/config", []byte(`{"name":"no command topic"}`))
	conn.deliver("devices/vacuum/robo/config", []byte(`{"command_topic":"t"}`))
	assert.Equal(t, 0, obs.count())

	// Subsequent valid messages still trigger discovery.
	conn.deliver("devices/switch/bedroom/config", switchPayload)
	assert.Equal(t, 1, obs.count())

	select {
	case <-c.Done():
		t.Fatal("per-message failures must not complete the session")
	default:
	}
}

func TestSubscribeFailure(t *testing.T) {
	conn := newFakeConn()
	cause := fmt.Errorf("%w: broker unavailable", errors.ErrSubscribeFailed)
	conn.subscribeErr = cause
	obs := &recorder{}
	session := NewSession("bridge-1", component.DefaultRegistry())

	c, err := session.Start(conn, 50*time.Millisecond, discoverAll(), obs)
	require.NoError(t, err, "subscribe failure surfaces via the completion handle")

	require.True(t, c.Resolved())
	assert.ErrorIs(t, c.Err(), errors.ErrSubscribeFailed)
	assert.NotErrorIs(t, c.Err(), ErrStopped, "transport failure must not read as a stop")
	assert.Equal(t, 0, obs.count())
	assert.Equal(t, StateCompleted, session.State())

	// No timer was armed: nothing resolves the handle a second time.
	time.Sleep(80 * time.Millisecond)
	assert.ErrorIs(t, c.Err(), cause)
}

func TestStopResolvesWithErrStopped(t *testing.T) {
	conn := newFakeConn()
	obs := &recorder{}
	session := NewSession("bridge-1", component.DefaultRegistry())

	c, err := session.Start(conn, time.Hour, discoverAll(), obs)
	require.NoError(t, err)

	conn.deliver("devices/switch/bedroom/config", switchPayload)
	require.Equal(t, 1, obs.count())

	session.Stop()

	require.True(t, c.Resolved())
	assert.ErrorIs(t, c.Err(), ErrStopped)
	assert.False(t, conn.subscribed())

	// Messages after completion are silently dropped.
	conn.deliver("devices/switch/other/config", switchPayload)
	assert.Equal(t, 1, obs.count())
}

func TestStopIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	session := NewSession("bridge-1", component.DefaultRegistry())

	c, err := session.Start(conn, time.Hour, discoverAll(), &recorder{})
	require.NoError(t, err)

	session.Stop()
	session.Stop()
	session.Stop()

	assert.ErrorIs(t, c.Err(), ErrStopped)
	assert.Equal(t, 1, conn.unsubscribes)
}

func TestStopAfterNaturalCompletionIsNoOp(t *testing.T) {
	conn := newFakeConn()
	session := NewSession("bridge-1", component.DefaultRegistry())

	c, err := session.Start(conn, 10*time.Millisecond, discoverAll(), &recorder{})
	require.NoError(t, err)

	require.NoError(t, c.Await(t.Context()))

	session.Stop()
	assert.NoError(t, c.Err(), "the first resolution wins; stop after completion is discarded")
}

func TestStopBeforeStartIsNoOp(t *testing.T) {
	session := NewSession("bridge-1", component.DefaultRegistry())
	session.Stop()
	assert.Equal(t, StateCreated, session.State())

	conn := newFakeConn()
	c, err := session.Start(conn, 0, discoverAll(), &recorder{})
	require.NoError(t, err)
	require.NoError(t, c.Err())
	session.Stop()
}

func TestZeroDurationResolvesImmediately(t *testing.T) {
	conn := newFakeConn()
	obs := &recorder{}
	session := NewSession("bridge-1", component.DefaultRegistry())

	c, err := session.Start(conn, 0, discoverAll(), obs)
	require.NoError(t, err)

	require.True(t, c.Resolved())
	assert.NoError(t, c.Err())

	// The subscription remains active until an explicit stop.
	assert.True(t, conn.subscribed())
	conn.deliver("devices/switch/bedroom/config", switchPayload)
	assert.Equal(t, 1, obs.count())

	session.Stop()
	assert.False(t, conn.subscribed())
	conn.deliver("devices/switch/other/config", switchPayload)
	assert.Equal(t, 1, obs.count())
}

func TestStartRejectsSecondRun(t *testing.T) {
	conn := newFakeConn()
	session := NewSession("bridge-1", component.DefaultRegistry())

	_, err := session.Start(conn, time.Hour, discoverAll(), &recorder{})
	require.NoError(t, err)

	_, err = session.Start(conn, time.Hour, discoverAll(), &recorder{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)

	session.Stop()

	_, err = session.Start(conn, time.Hour, discoverAll(), &recorder{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSessionCompleted)
}

func TestStartPreconditions(t *testing.T) {
	conn := newFakeConn()
	session := NewSession("bridge-1", component.DefaultRegistry())

	_, err := session.Start(conn, time.Hour, discoverAll(), nil)
	assert.Error(t, err)

	_, err = session.Start(conn, -time.Second, discoverAll(), &recorder{})
	assert.Error(t, err)

	// Precondition failures do not consume the session.
	_, err = session.Start(conn, 0, discoverAll(), &recorder{})
	assert.NoError(t, err)
}

func TestCompletionResolvesExactlyOnceUnderRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		conn := newFakeConn()
		session := NewSession("bridge-1", component.DefaultRegistry())

		c, err := session.Start(conn, time.Millisecond, discoverAll(), &recorder{})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				session.Stop()
			}()
		}
		wg.Wait()

		// Either the timer or a Stop call wins; both are valid outcomes,
		// but there must be exactly one.
		if err := c.Await(t.Context()); err != nil {
			assert.ErrorIs(t, err, ErrStopped)
		}
		assert.Equal(t, StateCompleted, session.State())
		assert.False(t, conn.subscribed(), "every race outcome must release the subscription")
	}
}

func TestSessionMetrics(t *testing.T) {
	m := metric.NewMetrics()
	conn := newFakeConn()
	obs := &recorder{}
	session := NewSession("bridge-1", component.DefaultRegistry(), WithMetrics(m))

	_, err := session.Start(conn, time.Hour, discoverAll(), obs)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))

	conn.deliver("devices/switch/bedroom/config", switchPayload)
	conn.deliver("devices/switch/bedroom/state", []byte(`ON`))
	conn.deliver("devices/switch/bedroom/config", []byte(`{broken`))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComponentsDiscovered.WithLabelValues("switch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesIgnored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigsRejected))

	session.Stop()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsCompleted.WithLabelValues(metric.OutcomeStopped)))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "unknown", State(42).String())
}

// stubFactory returns a fixed error, for exercising rejection paths without
// the real registry.
type stubFactory struct{ err error }

func (sf stubFactory) Create(string, topic.ID, []byte) (component.Component, error) {
	return nil, sf.err
}

func TestFactoryRejectionNeverEscalates(t *testing.T) {
	conn := newFakeConn()
	obs := &recorder{}
	session := NewSession("bridge-1", stubFactory{err: stderrors.New("rejected")})

	c, err := session.Start(conn, 0, discoverAll(), obs)
	require.NoError(t, err)
	defer session.Stop()

	for i := 0; i < 10; i++ {
		conn.deliver("devices/switch/bedroom/config", switchPayload)
	}
	assert.Equal(t, 0, obs.count())
	assert.NoError(t, c.Err())
	assert.Equal(t, StateRunning, session.State())
}
