package dispatcher

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common/metrics"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

var logger *log.Entry = log.WithFields(log.Fields{"prefix": "dispatcher"})

//
// Dispatcher owns the reactors and the transport-facing peer handles. It
// drives the per-peer lifecycle on every reactor and routes inbound
// messages to the reactor that declared the message's channel. Channel IDs
// must be unique across all reactors added to one dispatcher.
//
type Dispatcher struct {
	mutex sync.Mutex

	reactors   []p2p.Reactor
	channelMap map[common.ChannelIDEnum]p2p.Reactor // map: channelID |-> owning reactor
	peerTable  PeerTable

	// Life cycle
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// NewDispatcher creates an instance of Dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		channelMap: make(map[common.ChannelIDEnum]p2p.Reactor),
		peerTable:  CreatePeerTable(),
	}
}

// AddReactor registers the reactor with the dispatcher. The channel IDs the
// reactor declares must not collide with those of previously added reactors.
func (dp *Dispatcher) AddReactor(reactor p2p.Reactor) error {
	dp.mutex.Lock()
	defer dp.mutex.Unlock()

	if dp.started {
		return errors.Wrapf(p2p.ErrAlreadyStarted, "cannot add reactor %v after dispatcher start", reactor.Name())
	}

	descriptors := reactor.GetChannelDescriptors()
	for _, descriptor := range descriptors {
		if owner, exists := dp.channelMap[descriptor.ID]; exists {
			return errors.Wrapf(p2p.ErrDuplicateChannelID,
				"channelID %v declared by reactor %v is already claimed by reactor %v",
				descriptor.ID, reactor.Name(), owner.Name())
		}
	}

	if err := reactor.Register(); err != nil {
		return err
	}

	for _, descriptor := range descriptors {
		dp.channelMap[descriptor.ID] = reactor
	}
	dp.reactors = append(dp.reactors, reactor)

	logger.Infof("Added reactor %v serving %v channel(s)", reactor.Name(), len(descriptors))
	return nil
}

// Start is called when the dispatcher starts. It starts all the reactors.
func (dp *Dispatcher) Start(ctx context.Context) error {
	dp.mutex.Lock()
	defer dp.mutex.Unlock()

	if dp.started || dp.stopped {
		return errors.Wrap(p2p.ErrAlreadyStarted, "dispatcher")
	}

	c, cancel := context.WithCancel(ctx)
	dp.ctx = c
	dp.cancel = cancel

	for _, reactor := range dp.reactors {
		if err := reactor.Start(c); err != nil {
			cancel()
			return err
		}
	}
	dp.started = true
	return nil
}

// Stop drains every peer from every reactor and then stops the reactors.
// Reactors refuse to stop while peers are still active, so the drain must
// come first.
func (dp *Dispatcher) Stop() error {
	dp.mutex.Lock()
	if !dp.started || dp.stopped {
		dp.mutex.Unlock()
		return errors.Wrap(p2p.ErrNotRunning, "dispatcher")
	}
	dp.mutex.Unlock()

	for _, peer := range dp.peerTable.GetAllPeers() {
		dp.removePeer(peer, "dispatcher shutdown")
	}

	dp.mutex.Lock()
	defer dp.mutex.Unlock()

	for _, reactor := range dp.reactors {
		if err := reactor.Stop(); err != nil {
			return errors.Wrapf(err, "failed to stop reactor %v", reactor.Name())
		}
	}
	dp.cancel()
	dp.stopped = true
	return nil
}

// Wait suspends the caller goroutine until all reactors have fully terminated
func (dp *Dispatcher) Wait() {
	dp.mutex.Lock()
	reactors := make([]p2p.Reactor, len(dp.reactors))
	copy(reactors, dp.reactors)
	dp.mutex.Unlock()

	tasks := []func(){}
	for _, reactor := range reactors {
		reactor := reactor
		tasks = append(tasks, reactor.Wait)
	}
	common.Parallel(tasks...)
}

// AddPeer hands the peer to every reactor: InitPeer on all reactors first,
// then AddPeer. A failure at any step evicts the peer from the reactors
// that already accepted it.
func (dp *Dispatcher) AddPeer(peer p2p.Peer) error {
	dp.mutex.Lock()
	if !dp.started || dp.stopped {
		dp.mutex.Unlock()
		return errors.Wrap(p2p.ErrNotRunning, "dispatcher")
	}
	reactors := make([]p2p.Reactor, len(dp.reactors))
	copy(reactors, dp.reactors)
	dp.mutex.Unlock()

	for i, reactor := range reactors {
		annotated, err := reactor.InitPeer(peer)
		if err != nil {
			dp.evictPeer(peer, reactors[:i], "init failed")
			return errors.Wrapf(err, "reactor %v failed to init peer %v", reactor.Name(), peer.ID())
		}
		if annotated != nil {
			peer = annotated
		}
	}

	dp.peerTable.AddPeer(peer)

	for _, reactor := range reactors {
		if err := reactor.AddPeer(peer); err != nil {
			// Covers asynchronous failure during activation: tear the peer
			// down everywhere, including reactors where it never activated.
			dp.evictPeer(peer, reactors, "activation failed")
			dp.peerTable.DeletePeer(peer.ID())
			return errors.Wrapf(err, "reactor %v failed to add peer %v", reactor.Name(), peer.ID())
		}
	}

	logger.Infof("Added peer %v", peer.ID())
	return nil
}

// StopPeerForError removes the peer from all reactors in response to a
// transport or protocol error
func (dp *Dispatcher) StopPeerForError(peer p2p.Peer, reason string) {
	logger.Warnf("Stopping peer %v for error: %v", peer.ID(), reason)
	dp.removePeer(peer, reason)
}

// StopPeerGracefully removes the peer from all reactors on an orderly disconnect
func (dp *Dispatcher) StopPeerGracefully(peer p2p.Peer) {
	dp.removePeer(peer, "graceful disconnect")
}

func (dp *Dispatcher) removePeer(peer p2p.Peer, reason string) {
	dp.mutex.Lock()
	reactors := make([]p2p.Reactor, len(dp.reactors))
	copy(reactors, dp.reactors)
	dp.mutex.Unlock()

	dp.evictPeer(peer, reactors, reason)
	dp.peerTable.DeletePeer(peer.ID())
	peer.Stop()
}

// evictPeer removes the peer from the given reactors. A reactor that never
// knew the peer is not an error here.
func (dp *Dispatcher) evictPeer(peer p2p.Peer, reactors []p2p.Reactor, reason string) {
	for _, reactor := range reactors {
		if err := reactor.RemovePeer(peer, reason); err != nil {
			if errors.Cause(err) != p2p.ErrUnknownPeer {
				logger.Warnf("Failed to remove peer %v from reactor %v: %v", peer.ID(), reactor.Name(), err)
			}
		}
	}
}

// Receive routes the inbound message to the reactor that declared its
// channel. Called by the transport for every decoded message.
func (dp *Dispatcher) Receive(message types.Message) error {
	dp.mutex.Lock()
	reactor, exists := dp.channelMap[message.ChannelID]
	dp.mutex.Unlock()

	if !exists {
		logger.Warnf("No reactor declared channel %v, dropping message from peer %v", message.ChannelID, message.PeerID)
		metrics.MessagesRejected.WithLabelValues("dispatcher", metrics.ReasonUnknownChannel).Inc()
		return errors.Wrapf(p2p.ErrUnknownChannel, "channelID: %v", message.ChannelID)
	}
	return reactor.Receive(message)
}

// Send sends the given message to the specified peer
func (dp *Dispatcher) Send(peerID string, message types.Message) bool {
	peer := dp.peerTable.GetPeer(peerID)
	if peer == nil {
		return false
	}
	return peer.Send(message.ChannelID, message.Content)
}

// Broadcast broadcasts the given message to all the connected peers
func (dp *Dispatcher) Broadcast(message types.Message) (successes chan bool) {
	allPeers := dp.peerTable.GetAllPeers()
	successes = make(chan bool, len(allPeers))
	for _, peer := range allPeers {
		go func(peer p2p.Peer) {
			success := dp.Send(peer.ID(), message)
			successes <- success
		}(peer)
	}
	return successes
}

// Peers returns the IDs of all connected peers
func (dp *Dispatcher) Peers() []string {
	allPeers := dp.peerTable.GetAllPeers()
	peerIDs := make([]string, 0, len(allPeers))
	for _, peer := range allPeers {
		peerIDs = append(peerIDs, peer.ID())
	}
	return peerIDs
}

// PeerExists indicates if the given peerID is a connected peer
func (dp *Dispatcher) PeerExists(peerID string) bool {
	return dp.peerTable.PeerExists(peerID)
}
