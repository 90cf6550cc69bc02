// Package homestream discovers device component descriptors announced on a
// wildcard pub/sub topic, following the HomeAssistant MQTT discovery
// convention, carried over NATS.
//
// # Architecture
//
// Devices publish retained configuration messages on topics of the shape
//
//	<prefix>/<component>/[<nodeID>/]<objectID>/config
//
// A discovery session subscribes to the wildcard form of that topic, filters
// incoming messages to configuration announcements, parses each payload into
// a typed component descriptor and reports it to an observer exactly once.
// The session's completion handle resolves exactly once, whether the
// discovery window closes by timeout, explicit stop, or subscribe failure.
//
//	┌──────────────┐   subscribe/deliver   ┌───────────────────┐
//	│  transport   │──────────────────────▶│ discovery.Session │
//	│ (NATS conn)  │◀──────────────────────│   (state machine) │
//	└──────────────┘      unsubscribe      └─────────┬─────────┘
//	                                                 │ parse + create
//	                                       ┌─────────▼─────────┐
//	                                       │ component.Registry │
//	                                       │  (kind factories)  │
//	                                       └─────────┬─────────┘
//	                                                 │ ComponentDiscovered
//	                                       ┌─────────▼─────────┐
//	                                       │     Observer      │
//	                                       └───────────────────┘
//
// # Packages
//
//   - discovery: the session state machine and single-resolution completion
//   - topic: topic identifier parsing and subscription filter construction
//   - component: typed descriptors, kind registry, schema validation
//   - transport: the broker connection boundary and its NATS implementation
//   - config: configuration loading and validation
//   - metric: prometheus metrics and the metrics HTTP server
//   - errors: error classification (transient/invalid/fatal)
//   - pkg/retry: exponential backoff for transient failures
//
// # Usage
//
//	conn, _ := transport.NewConn("nats://localhost:4222")
//	_ = conn.Connect(ctx)
//
//	session := discovery.NewSession("bridge-1", component.DefaultRegistry())
//	completion, err := session.Start(conn, 30*time.Second,
//		topic.ID{Prefix: "devices"},
//		discovery.ObserverFunc(func(id topic.ID, c component.Component) {
//			fmt.Println("discovered", id.Component, id.ObjectID)
//		}))
//	if err != nil {
//		return err
//	}
//	if err := completion.Await(ctx); err != nil {
//		// discovery.ErrStopped means a deliberate Stop(), anything
//		// else is a transport failure.
//	}
package homestream
