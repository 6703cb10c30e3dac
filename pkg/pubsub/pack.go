package pubsub

// Pack is the unit carried by every pub/sub fabric. Key selects the receiver
// (a partition key for kafka, a channel suffix for redis), Msg is opaque.
type Pack struct {
	Key []byte
	Msg []byte
}
