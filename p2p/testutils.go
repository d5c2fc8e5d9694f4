package p2p

import (
	"sync"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

// --------------- Test Utilities --------------- //

//
// MockPeer implements the Peer interface, recording outbound messages
//
type MockPeer struct {
	mutex sync.Mutex

	peerID  string
	sent    []types.Message
	stopped bool
}

var _ Peer = (*MockPeer)(nil)

// NewMockPeer creates a MockPeer with the given ID
func NewMockPeer(peerID string) *MockPeer {
	return &MockPeer{peerID: peerID}
}

// ID implements the Peer interface
func (mp *MockPeer) ID() string {
	return mp.peerID
}

// Send implements the Peer interface, it records the message instead of sending it
func (mp *MockPeer) Send(channelID common.ChannelIDEnum, payload common.Bytes) bool {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	if mp.stopped {
		return false
	}
	mp.sent = append(mp.sent, types.Message{
		PeerID:    mp.peerID,
		ChannelID: channelID,
		Content:   payload,
	})
	return true
}

// Stop implements the Peer interface
func (mp *MockPeer) Stop() {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	mp.stopped = true
}

// SentMessages returns the messages recorded by Send
func (mp *MockPeer) SentMessages() []types.Message {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	ret := make([]types.Message, len(mp.sent))
	copy(ret, mp.sent)
	return ret
}

// Stopped indicates whether Stop has been called
func (mp *MockPeer) Stopped() bool {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()

	return mp.stopped
}
