package common

// Bytes is a short-hand for []byte
type Bytes []byte

// ChannelIDEnum identifies a logical message channel multiplexed over a peer connection
type ChannelIDEnum byte

const (
	// ChannelIDInvalid is the zero value placeholder, never declared by a reactor
	ChannelIDInvalid ChannelIDEnum = 0x0

	// ChannelIDPing is the well-known channel for the ping/pong heartbeat
	ChannelIDPing ChannelIDEnum = 0x1
)
