package types

// Event is the flattened form of a ledger state transition broadcast to
// subscribers such as the RPC layer or external indexers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
