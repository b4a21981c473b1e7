// Package obs defines the metrics-observation interface shared between the
// dispatcher, the event loop, and the root package's Metrics-backed
// implementation. It is kept separate from the root package so that
// internal packages can depend on the interface without importing the root
// package and creating an import cycle with it.
package obs

// Observer allows pluggable metrics collection, matching the shape of calls
// the event loop and replication engine make as they process traffic.
type Observer interface {
	// ObserveCommand is called once per dispatched command.
	ObserveCommand(latencyNs uint64, success bool)

	// ObserveKeyspaceLookup is called for each GET-like lookup.
	ObserveKeyspaceLookup(hit bool)

	// ObserveKeyspaceExpiration is called when a key is lazily expired.
	ObserveKeyspaceExpiration()

	// ObservePropagation is called with the byte count of a write command
	// forwarded to replicas.
	ObservePropagation(bytes uint64)

	// ObserveReplicaAck is called for each REPLCONF ACK received.
	ObserveReplicaAck()

	// ObserveWaitOutcome is called once a WAIT call resolves.
	ObserveWaitOutcome(satisfied bool)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCommand(uint64, bool) {}
func (NoOpObserver) ObserveKeyspaceLookup(bool)  {}
func (NoOpObserver) ObserveKeyspaceExpiration()  {}
func (NoOpObserver) ObservePropagation(uint64)   {}
func (NoOpObserver) ObserveReplicaAck()          {}
func (NoOpObserver) ObserveWaitOutcome(bool)     {}
