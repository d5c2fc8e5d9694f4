package p2p

import (
	"context"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

//
// Peer is a handle to a connected remote node. Peers are owned by the
// dispatcher; reactors only hold references passed into them.
//
type Peer interface {

	// ID returns the unique identifier of the remote node
	ID() string

	// Send delivers the payload to the remote node on the given channel
	Send(channelID common.ChannelIDEnum, payload common.Bytes) bool

	// Stop tears down the underlying transport connection
	Stop()
}

//
// MessageHandler processes inbound messages for the channels it declares
//
type MessageHandler interface {

	// GetChannelDescriptors returns the descriptors of the channels the handler receives on
	GetChannelDescriptors() []types.ChannelDescriptor

	// HandleMessage handles one inbound message. A non-nil error rejects
	// the message without affecting the peer connection.
	HandleMessage(message types.Message) error
}

//
// Reactor manages the lifecycle of logical connections to remote peers and
// routes inbound messages to the handlers registered on its channels
//
type Reactor interface {

	// Name returns the name of the reactor
	Name() string

	// GetChannelDescriptors returns the channels declared by the attached handlers
	GetChannelDescriptors() []types.ChannelDescriptor

	// Register validates the declared channel set and attaches the reactor to a dispatcher
	Register() error

	// Start transitions the registered reactor into the running state
	Start(ctx context.Context) error

	// Stop shuts the reactor down; all peers must have been removed beforehand
	Stop() error

	// Wait suspends the caller goroutine until all peer routines have terminated
	Wait()

	// InitPeer is called by the dispatcher before the peer connection is started
	InitPeer(peer Peer) (Peer, error)

	// AddPeer activates an initialized peer and spawns its routines
	AddPeer(peer Peer) error

	// RemovePeer tears down the peer's routines and forgets the peer
	RemovePeer(peer Peer, reason string) error

	// Receive routes one inbound message to the handler of its channel
	Receive(message types.Message) error
}
