package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p"
)

func TestPeerTableAddGetDelete(t *testing.T) {
	assert := assert.New(t)

	pt := CreatePeerTable()
	assert.Equal(uint(0), pt.GetTotalNumPeers())
	assert.Nil(pt.GetPeer("p1"))

	peer1 := p2p.NewMockPeer("p1")
	peer2 := p2p.NewMockPeer("p2")
	assert.True(pt.AddPeer(peer1))
	assert.True(pt.AddPeer(peer2))

	assert.Equal(uint(2), pt.GetTotalNumPeers())
	assert.True(pt.PeerExists("p1"))
	assert.True(pt.PeerExists("p2"))
	assert.Equal(p2p.Peer(peer1), pt.GetPeer("p1"))

	allPeers := pt.GetAllPeers()
	assert.Equal(2, len(allPeers))
	assert.Equal("p1", allPeers[0].ID())
	assert.Equal("p2", allPeers[1].ID())

	pt.DeletePeer("p1")
	assert.Equal(uint(1), pt.GetTotalNumPeers())
	assert.False(pt.PeerExists("p1"))
	assert.Nil(pt.GetPeer("p1"))

	// Deleting an absent peer is a no-op
	pt.DeletePeer("p1")
	assert.Equal(uint(1), pt.GetTotalNumPeers())
}

func TestPeerTableReplacesDuplicatePeer(t *testing.T) {
	assert := assert.New(t)

	pt := CreatePeerTable()
	oldPeer := p2p.NewMockPeer("p1")
	newPeer := p2p.NewMockPeer("p1")

	assert.True(pt.AddPeer(oldPeer))
	assert.True(pt.AddPeer(newPeer))

	// The superseded handle is stopped and replaced in place
	assert.Equal(uint(1), pt.GetTotalNumPeers())
	assert.True(oldPeer.Stopped())
	assert.False(newPeer.Stopped())
	assert.Equal(p2p.Peer(newPeer), pt.GetPeer("p1"))
}
