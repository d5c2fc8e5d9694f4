package reactor

import (
	"github.com/pkg/errors"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

// peerStatus tracks the per-peer lifecycle state. A peer that has been
// removed has no record at all; its ID may be reused via a fresh Init.
type peerStatus int

const (
	peerStatusInitialized peerStatus = iota
	peerStatusActive
)

// peerRecord holds the per-peer state owned by the reactor. The inbound
// queue is created when the peer becomes active.
type peerRecord struct {
	peer    p2p.Peer
	status  peerStatus
	inbound chan *types.Message
}

//
// PeerLifecycleManager tracks which peers are known (initialized) or active.
// It is not safe for concurrent use: the owning Reactor serializes all
// access through its mutex.
//
type PeerLifecycleManager struct {
	peerMap map[string]*peerRecord // map: peerID |-> *peerRecord
}

// NewPeerLifecycleManager creates an empty PeerLifecycleManager
func NewPeerLifecycleManager() *PeerLifecycleManager {
	return &PeerLifecycleManager{
		peerMap: make(map[string]*peerRecord),
	}
}

// Init transitions the peer from Unknown to Initialized
func (pm *PeerLifecycleManager) Init(peer p2p.Peer) error {
	if _, exists := pm.peerMap[peer.ID()]; exists {
		return errors.Wrapf(p2p.ErrAlreadyKnown, "peerID: %v", peer.ID())
	}
	pm.peerMap[peer.ID()] = &peerRecord{
		peer:   peer,
		status: peerStatusInitialized,
	}
	return nil
}

// Activate transitions an initialized peer to Active, allocating its
// bounded inbound queue
func (pm *PeerLifecycleManager) Activate(peerID string, queueSize int) (*peerRecord, error) {
	record, exists := pm.peerMap[peerID]
	if !exists {
		return nil, errors.Wrapf(p2p.ErrUnknownPeer, "peerID: %v", peerID)
	}
	if record.status == peerStatusActive {
		return nil, errors.Wrapf(p2p.ErrAlreadyActive, "peerID: %v", peerID)
	}
	record.status = peerStatusActive
	record.inbound = make(chan *types.Message, queueSize)
	return record, nil
}

// Remove forgets the peer, whether or not it ever reached Active
func (pm *PeerLifecycleManager) Remove(peerID string) (*peerRecord, error) {
	record, exists := pm.peerMap[peerID]
	if !exists {
		return nil, errors.Wrapf(p2p.ErrUnknownPeer, "peerID: %v", peerID)
	}
	delete(pm.peerMap, peerID)
	return record, nil
}

// Get returns the record of the given peer (if known)
func (pm *PeerLifecycleManager) Get(peerID string) (*peerRecord, bool) {
	record, exists := pm.peerMap[peerID]
	return record, exists
}

// NumPeers returns the number of known peers
func (pm *PeerLifecycleManager) NumPeers() int {
	return len(pm.peerMap)
}

// IsEmpty indicates whether the known peer set is empty
func (pm *PeerLifecycleManager) IsEmpty() bool {
	return len(pm.peerMap) == 0
}
