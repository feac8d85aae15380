package types

// Event is the flattened representation of a state change produced by one of
// the native engines. Attributes are stringified so downstream consumers (RPC
// subscribers, indexers) can decode them without engine-specific types.
type Event struct {
	Type       string
	Attributes map[string]string
}
