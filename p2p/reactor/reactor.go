package reactor

import (
	"context"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common/metrics"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

var logger *log.Entry = log.WithFields(log.Fields{"prefix": "reactor"})

//
// Reactor manages the lifecycle of logical connections to remote peers and
// routes inbound messages to the handlers registered on its channels. All
// mutations of the reactor state (peer set, routines, lifecycle flags) are
// serialized through a single mutex.
//
type Reactor struct {
	name string

	handlers []p2p.MessageHandler
	registry *ChannelRegistry
	peers    *PeerLifecycleManager
	routines *RoutineSet

	// IDs of recently removed peers, kept around so that stale in-flight
	// messages can be told apart from messages of never-known peers.
	removedPeerCache *lru.Cache

	// Life cycle
	mutex      sync.Mutex
	registered bool
	started    bool
	stopped    bool
	ctx        context.Context
	cancel     context.CancelFunc

	config ReactorConfig
}

var _ p2p.Reactor = (*Reactor)(nil)

//
// ReactorConfig specifies the configuration of a Reactor
//
type ReactorConfig struct {
	MessageQueueSize     int
	RemovedPeerCacheSize int
	OnStart              func() error
	OnStop               func()
}

// GetDefaultReactorConfig returns the default config for a Reactor
func GetDefaultReactorConfig() ReactorConfig {
	return ReactorConfig{
		MessageQueueSize:     viper.GetInt(common.CfgP2PMessageQueueSize),
		RemovedPeerCacheSize: viper.GetInt(common.CfgP2PRemovedPeerCacheSize),
	}
}

// NewReactor creates a Reactor serving the given message handlers
func NewReactor(name string, config ReactorConfig, handlers ...p2p.MessageHandler) *Reactor {
	if config.MessageQueueSize <= 0 {
		config.MessageQueueSize = viper.GetInt(common.CfgP2PMessageQueueSize)
	}
	if config.RemovedPeerCacheSize <= 0 {
		config.RemovedPeerCacheSize = viper.GetInt(common.CfgP2PRemovedPeerCacheSize)
	}
	removedPeerCache, err := lru.New(config.RemovedPeerCacheSize)
	if err != nil {
		logger.Errorf("Failed to create removed peer cache: %v", err)
		return nil
	}

	return &Reactor{
		name:             name,
		handlers:         handlers,
		peers:            NewPeerLifecycleManager(),
		routines:         NewRoutineSet(),
		removedPeerCache: removedPeerCache,
		config:           config,
	}
}

// Name returns the name of the reactor
func (r *Reactor) Name() string {
	return r.name
}

// GetChannelDescriptors returns the channels declared by the attached
// handlers. Pure query; duplicates are reported by Register, not here.
func (r *Reactor) GetChannelDescriptors() []types.ChannelDescriptor {
	descriptors := []types.ChannelDescriptor{}
	for _, handler := range r.handlers {
		descriptors = append(descriptors, handler.GetChannelDescriptors()...)
	}
	return descriptors
}

// Register validates the declared channel set and marks the reactor as
// attached. Fails with p2p.ErrDuplicateChannelID if two handlers declare
// the same channel, with p2p.ErrAlreadyRegistered on a second call.
func (r *Reactor) Register() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.registered {
		return errors.Wrapf(p2p.ErrAlreadyRegistered, "reactor: %v", r.name)
	}

	registry := NewChannelRegistry()
	for _, handler := range r.handlers {
		if err := registry.AddHandler(handler); err != nil {
			return errors.Wrapf(err, "reactor: %v", r.name)
		}
	}

	r.registry = registry
	r.registered = true
	return nil
}

// Start is called when the reactor starts
func (r *Reactor) Start(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.registered {
		return errors.Wrapf(p2p.ErrNotRegistered, "reactor: %v", r.name)
	}
	if r.started || r.stopped {
		return errors.Wrapf(p2p.ErrAlreadyStarted, "reactor: %v", r.name)
	}

	c, cancel := context.WithCancel(ctx)
	if r.config.OnStart != nil {
		if err := r.config.OnStart(); err != nil {
			cancel()
			return err
		}
	}
	r.ctx = c
	r.cancel = cancel
	r.started = true

	logger.Infof("Reactor %v started", r.name)
	return nil
}

// Stop is called when the reactor stops. All peers must have been removed
// beforehand: shutdown drains peers, it never force-cancels them.
func (r *Reactor) Stop() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.started || r.stopped {
		return errors.Wrapf(p2p.ErrNotRunning, "reactor: %v", r.name)
	}
	if !r.peers.IsEmpty() {
		return errors.Wrapf(p2p.ErrPeersStillActive, "reactor: %v, numPeers: %v", r.name, r.peers.NumPeers())
	}

	if r.config.OnStop != nil {
		r.config.OnStop()
	}
	r.cancel()
	r.stopped = true

	logger.Infof("Reactor %v stopped", r.name)
	return nil
}

// Wait suspends the caller goroutine until all peer routines have terminated
func (r *Reactor) Wait() {
	r.routines.Wait()
}

// InitPeer is called by the dispatcher before the peer connection is
// started. It transitions the peer from Unknown to Initialized.
func (r *Reactor) InitPeer(peer p2p.Peer) (p2p.Peer, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.running() {
		return nil, errors.Wrapf(p2p.ErrNotRunning, "reactor: %v", r.name)
	}
	if err := r.peers.Init(peer); err != nil {
		return nil, err
	}
	return peer, nil
}

// AddPeer activates an initialized peer and spawns its inbound pump routine
func (r *Reactor) AddPeer(peer p2p.Peer) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.running() {
		return errors.Wrapf(p2p.ErrNotRunning, "reactor: %v", r.name)
	}
	record, err := r.peers.Activate(peer.ID(), r.config.MessageQueueSize)
	if err != nil {
		return err
	}

	inbound := record.inbound
	r.routines.Spawn(r.ctx, peer.ID(), "inbound-pump", func(ctx context.Context) {
		r.inboundPump(ctx, inbound)
	})
	metrics.ActivePeers.WithLabelValues(r.name).Inc()

	logger.Debugf("Reactor %v activated peer %v", r.name, peer.ID())
	return nil
}

// RemovePeer cancels all routines bound to the peer and forgets it. Valid
// whether or not the peer ever reached the active state. When RemovePeer
// returns, no routine of this peer will deliver further messages.
func (r *Reactor) RemovePeer(peer p2p.Peer, reason string) error {
	r.mutex.Lock()
	record, err := r.peers.Remove(peer.ID())
	if err != nil {
		r.mutex.Unlock()
		return err
	}
	r.mutex.Unlock()

	// Cancellation runs outside the critical section: CancelAll blocks
	// until every routine of the peer has acknowledged.
	r.routines.CancelAll(peer.ID())
	r.removedPeerCache.Add(peer.ID(), reason)
	if record.status == peerStatusActive {
		metrics.ActivePeers.WithLabelValues(r.name).Dec()
	}

	logger.Infof("Reactor %v removed peer %v, reason: %v", r.name, peer.ID(), reason)
	return nil
}

// Receive routes one inbound message to the handler of its channel. The
// message is enqueued into the source peer's bounded inbound queue, or
// rejected when the queue is saturated. Rejections never mutate state.
func (r *Reactor) Receive(message types.Message) error {
	r.mutex.Lock()

	if !r.running() {
		r.mutex.Unlock()
		return errors.Wrapf(p2p.ErrNotRunning, "reactor: %v", r.name)
	}

	record, exists := r.peers.Get(message.PeerID)
	if !exists || record.status != peerStatusActive {
		r.mutex.Unlock()
		r.rejectFromPeer(&message)
		return errors.Wrapf(p2p.ErrUnknownPeer, "peerID: %v", message.PeerID)
	}

	if !r.registry.HasChannel(message.ChannelID) {
		r.mutex.Unlock()
		logger.Warnf("Reactor %v received message on undeclared channel %v from peer %v",
			r.name, message.ChannelID, message.PeerID)
		metrics.MessagesRejected.WithLabelValues(r.name, metrics.ReasonUnknownChannel).Inc()
		return errors.Wrapf(p2p.ErrUnknownChannel, "channelID: %v", message.ChannelID)
	}

	// Enqueue-or-reject: the buffered send never blocks the critical section.
	select {
	case record.inbound <- &message:
		r.mutex.Unlock()
		metrics.MessagesReceived.WithLabelValues(r.name, strconv.Itoa(int(message.ChannelID))).Inc()
		return nil
	default:
		r.mutex.Unlock()
		logger.Warnf("Reactor %v inbound queue full for peer %v, rejecting message on channel %v",
			r.name, message.PeerID, message.ChannelID)
		metrics.MessagesRejected.WithLabelValues(r.name, metrics.ReasonQueueFull).Inc()
		return errors.Wrapf(p2p.ErrMessageQueueFull, "peerID: %v, channelID: %v", message.PeerID, message.ChannelID)
	}
}

// running returns whether the reactor accepts peer operations. The caller
// must hold r.mutex.
func (r *Reactor) running() bool {
	return r.started && !r.stopped
}

// inboundPump drains the peer's inbound queue and hands messages to the
// channel handlers in arrival order. It re-checks its context before every
// delivery so that nothing reaches a handler once cancellation is requested.
func (r *Reactor) inboundPump(ctx context.Context, inbound <-chan *types.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-inbound:
			if ctx.Err() != nil {
				return
			}
			r.deliver(message)
		}
	}
}

// deliver hands one dequeued message to its channel handler
func (r *Reactor) deliver(message *types.Message) {
	handler, exists := r.registry.GetHandler(message.ChannelID)
	if !exists {
		// Receive validated the channel before enqueueing
		logger.Errorf("Reactor %v has no handler for channel %v", r.name, message.ChannelID)
		return
	}
	if err := handler.HandleMessage(*message); err != nil {
		logger.Warnf("Reactor %v handler rejected message from peer %v on channel %v: %v",
			r.name, message.PeerID, message.ChannelID, err)
		metrics.MessagesRejected.WithLabelValues(r.name, metrics.ReasonHandlerError).Inc()
	}
}

// rejectFromPeer records the rejection of a message whose source is not an
// active peer, distinguishing stale messages of recently removed peers
// from messages of never-known peers.
func (r *Reactor) rejectFromPeer(message *types.Message) {
	if reason, ok := r.removedPeerCache.Get(message.PeerID); ok || r.routines.Draining(message.PeerID) {
		logger.Debugf("Reactor %v dropping stale message from removed peer %v (removal reason: %v)",
			r.name, message.PeerID, reason)
		metrics.MessagesRejected.WithLabelValues(r.name, metrics.ReasonStalePeer).Inc()
		return
	}
	logger.Warnf("Reactor %v dropping message from unknown peer %v on channel %v",
		r.name, message.PeerID, message.ChannelID)
	metrics.MessagesRejected.WithLabelValues(r.name, metrics.ReasonUnknownPeer).Inc()
}
