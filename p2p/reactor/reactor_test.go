package reactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

func TestReactorRegister(t *testing.T) {
	assert := assert.New(t)

	// Distinct channel IDs: registration succeeds
	rc := NewReactor("test", GetDefaultReactorConfig(), newTestHandler(
		types.ChannelDescriptor{ID: 3, Priority: 1},
		types.ChannelDescriptor{ID: 7, Priority: 2},
	))
	assert.Equal(2, len(rc.GetChannelDescriptors()))
	assert.Nil(rc.Register())

	err := rc.Register()
	assert.Equal(p2p.ErrAlreadyRegistered, errors.Cause(err))
}

func TestReactorRegisterRejectsDuplicateChannels(t *testing.T) {
	assert := assert.New(t)

	rc := NewReactor("test", GetDefaultReactorConfig(),
		newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1}),
		newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 2}),
	)
	err := rc.Register()
	assert.Equal(p2p.ErrDuplicateChannelID, errors.Cause(err))

	// Registration failed, so the reactor must not start
	err = rc.Start(context.Background())
	assert.Equal(p2p.ErrNotRegistered, errors.Cause(err))
}

func TestReactorStartStop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	rc := NewReactor("test", GetDefaultReactorConfig(),
		newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1}))

	err := rc.Start(ctx)
	assert.Equal(p2p.ErrNotRegistered, errors.Cause(err))

	err = rc.Stop()
	assert.Equal(p2p.ErrNotRunning, errors.Cause(err))

	assert.Nil(rc.Register())
	assert.Nil(rc.Start(ctx))

	err = rc.Start(ctx)
	assert.Equal(p2p.ErrAlreadyStarted, errors.Cause(err))

	assert.Nil(rc.Stop())

	err = rc.Stop()
	assert.Equal(p2p.ErrNotRunning, errors.Cause(err))

	// The lifecycle is terminal: no restart after stop
	err = rc.Start(ctx)
	assert.Equal(p2p.ErrAlreadyStarted, errors.Cause(err))
}

func TestReactorStartStopHooks(t *testing.T) {
	assert := assert.New(t)

	startCalls, stopCalls := 0, 0
	config := GetDefaultReactorConfig()
	config.OnStart = func() error { startCalls++; return nil }
	config.OnStop = func() { stopCalls++ }

	rc := NewReactor("test", config,
		newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1}))
	assert.Nil(rc.Register())
	assert.Nil(rc.Start(context.Background()))
	assert.Equal(1, startCalls)
	assert.Nil(rc.Stop())
	assert.Equal(1, stopCalls)
}

func TestReactorPeerLifecycleOrdering(t *testing.T) {
	assert := assert.New(t)

	rc := newRunningReactor(t, newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1}))
	peer := p2p.NewMockPeer("p1")

	// AddPeer without a preceding InitPeer must be rejected
	err := rc.AddPeer(peer)
	assert.Equal(p2p.ErrUnknownPeer, errors.Cause(err))

	annotated, err := rc.InitPeer(peer)
	assert.Nil(err)
	assert.Equal(p2p.Peer(peer), annotated)

	_, err = rc.InitPeer(peer)
	assert.Equal(p2p.ErrAlreadyKnown, errors.Cause(err))

	assert.Nil(rc.AddPeer(peer))

	err = rc.AddPeer(peer)
	assert.Equal(p2p.ErrAlreadyActive, errors.Cause(err))

	assert.Nil(rc.RemovePeer(peer, "test over"))

	err = rc.RemovePeer(peer, "test over")
	assert.Equal(p2p.ErrUnknownPeer, errors.Cause(err))

	// The peer ID can rejoin via a fresh InitPeer
	_, err = rc.InitPeer(peer)
	assert.Nil(err)
	assert.Nil(rc.RemovePeer(peer, "cleanup"))
	assert.Nil(rc.Stop())
}

func TestReactorRemovePeerBeforeActivation(t *testing.T) {
	assert := assert.New(t)

	rc := newRunningReactor(t, newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1}))
	peer := p2p.NewMockPeer("p1")

	_, err := rc.InitPeer(peer)
	assert.Nil(err)

	// Covers failures between InitPeer and AddPeer
	assert.Nil(rc.RemovePeer(peer, "handshake failed"))
	assert.Nil(rc.Stop())
}

func TestReactorStopRequiresPeerDrain(t *testing.T) {
	assert := assert.New(t)

	rc := newRunningReactor(t, newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1}))
	peer := p2p.NewMockPeer("p1")

	_, err := rc.InitPeer(peer)
	assert.Nil(err)
	assert.Nil(rc.AddPeer(peer))

	err = rc.Stop()
	assert.Equal(p2p.ErrPeersStillActive, errors.Cause(err))

	assert.Nil(rc.RemovePeer(peer, "timeout"))
	assert.Nil(rc.Stop())
}

func TestReactorReceiveAndDeliver(t *testing.T) {
	assert := assert.New(t)

	handler := newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1})
	rc := newRunningReactor(t, handler)
	peer := p2p.NewMockPeer("p1")

	_, err := rc.InitPeer(peer)
	assert.Nil(err)
	assert.Nil(rc.AddPeer(peer))

	err = rc.Receive(types.Message{PeerID: "p1", ChannelID: 3, Content: common.Bytes("ping")})
	assert.Nil(err)

	// Delivered exactly once
	message := waitForMessage(t, handler)
	assert.Equal("p1", message.PeerID)
	assert.Equal(common.ChannelIDEnum(3), message.ChannelID)
	assert.Equal(common.Bytes("ping"), message.Content)
	select {
	case <-handler.received:
		t.Fatal("message delivered more than once")
	case <-time.After(50 * time.Millisecond):
	}

	// Messages from peers never initialized are protocol violations
	err = rc.Receive(types.Message{PeerID: "p9", ChannelID: 3, Content: common.Bytes("ping")})
	assert.Equal(p2p.ErrUnknownPeer, errors.Cause(err))

	// Undeclared channel
	err = rc.Receive(types.Message{PeerID: "p1", ChannelID: 9, Content: common.Bytes("ping")})
	assert.Equal(p2p.ErrUnknownChannel, errors.Cause(err))

	// A known but not yet active peer is not a valid source
	peer2 := p2p.NewMockPeer("p2")
	_, err = rc.InitPeer(peer2)
	assert.Nil(err)
	err = rc.Receive(types.Message{PeerID: "p2", ChannelID: 3, Content: common.Bytes("ping")})
	assert.Equal(p2p.ErrUnknownPeer, errors.Cause(err))

	assert.Nil(rc.RemovePeer(peer, "test over"))
	assert.Nil(rc.RemovePeer(peer2, "test over"))
	assert.Nil(rc.Stop())
}

func TestReactorReceiveOrdering(t *testing.T) {
	assert := assert.New(t)

	handler := newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1})
	rc := newRunningReactor(t, handler)
	peer := p2p.NewMockPeer("p1")

	_, err := rc.InitPeer(peer)
	assert.Nil(err)
	assert.Nil(rc.AddPeer(peer))

	numMessages := 50
	for i := 0; i < numMessages; i++ {
		err := rc.Receive(types.Message{PeerID: "p1", ChannelID: 3, Content: common.Bytes{byte(i)}})
		assert.Nil(err)
	}

	// FIFO per peer: arrival order is delivery order
	for i := 0; i < numMessages; i++ {
		message := waitForMessage(t, handler)
		assert.Equal(common.Bytes{byte(i)}, message.Content)
	}

	assert.Nil(rc.RemovePeer(peer, "test over"))
	assert.Nil(rc.Stop())
}

func TestReactorBackpressure(t *testing.T) {
	assert := assert.New(t)

	var once sync.Once
	handling := make(chan struct{})
	release := make(chan struct{})

	handler := newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1})
	handler.onMessage = func(message types.Message) error {
		once.Do(func() { close(handling) })
		<-release
		return nil
	}

	config := GetDefaultReactorConfig()
	config.MessageQueueSize = 1
	rc := NewReactor("test", config, handler)
	assert.Nil(rc.Register())
	assert.Nil(rc.Start(context.Background()))

	peer := p2p.NewMockPeer("p1")
	_, err := rc.InitPeer(peer)
	assert.Nil(err)
	assert.Nil(rc.AddPeer(peer))

	// First message is dequeued by the pump and blocks inside the handler
	assert.Nil(rc.Receive(types.Message{PeerID: "p1", ChannelID: 3, Content: common.Bytes{0x1}}))
	<-handling

	// Second message fills the queue, third is rejected without blocking
	assert.Nil(rc.Receive(types.Message{PeerID: "p1", ChannelID: 3, Content: common.Bytes{0x2}}))
	err = rc.Receive(types.Message{PeerID: "p1", ChannelID: 3, Content: common.Bytes{0x3}})
	assert.Equal(p2p.ErrMessageQueueFull, errors.Cause(err))

	close(release)
	assert.Nil(rc.RemovePeer(peer, "test over"))
	assert.Nil(rc.Stop())
}

func TestReactorRemovePeerStopsDelivery(t *testing.T) {
	assert := assert.New(t)

	handler := newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1})
	handler.onMessage = func(message types.Message) error {
		time.Sleep(2 * time.Millisecond)
		return nil
	}
	rc := newRunningReactor(t, handler)
	peer := p2p.NewMockPeer("p1")

	_, err := rc.InitPeer(peer)
	assert.Nil(err)
	assert.Nil(rc.AddPeer(peer))

	for i := 0; i < 50; i++ {
		assert.Nil(rc.Receive(types.Message{PeerID: "p1", ChannelID: 3, Content: common.Bytes{byte(i)}}))
	}
	time.Sleep(10 * time.Millisecond)

	assert.Nil(rc.RemovePeer(peer, "timeout"))
	assert.Equal(0, rc.routines.NumRoutines("p1"))

	// Once RemovePeer returned, nothing more reaches the handler
	numDelivered := len(handler.received)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(numDelivered, len(handler.received))

	err = rc.Receive(types.Message{PeerID: "p1", ChannelID: 3, Content: common.Bytes{0x0}})
	assert.Equal(p2p.ErrUnknownPeer, errors.Cause(err))

	assert.Nil(rc.Stop())
}

func TestReactorReceiveWhenNotRunning(t *testing.T) {
	assert := assert.New(t)

	rc := NewReactor("test", GetDefaultReactorConfig(),
		newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1}))
	assert.Nil(rc.Register())

	err := rc.Receive(types.Message{PeerID: "p1", ChannelID: 3, Content: common.Bytes("ping")})
	assert.Equal(p2p.ErrNotRunning, errors.Cause(err))
}

// --------------- Test Utilities --------------- //

// testHandler implements the p2p.MessageHandler interface
type testHandler struct {
	descriptors []types.ChannelDescriptor
	received    chan types.Message
	onMessage   func(message types.Message) error
}

func newTestHandler(descriptors ...types.ChannelDescriptor) *testHandler {
	return &testHandler{
		descriptors: descriptors,
		received:    make(chan types.Message, 128),
	}
}

func (th *testHandler) GetChannelDescriptors() []types.ChannelDescriptor {
	return th.descriptors
}

func (th *testHandler) HandleMessage(message types.Message) error {
	if th.onMessage != nil {
		if err := th.onMessage(message); err != nil {
			return err
		}
	}
	th.received <- message
	return nil
}

func newRunningReactor(t *testing.T, handlers ...p2p.MessageHandler) *Reactor {
	rc := NewReactor("test", GetDefaultReactorConfig(), handlers...)
	if err := rc.Register(); err != nil {
		t.Fatalf("Failed to register reactor: %v", err)
	}
	if err := rc.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start reactor: %v", err)
	}
	return rc
}

func waitForMessage(t *testing.T, handler *testHandler) types.Message {
	select {
	case message := <-handler.received:
		return message
	case <-time.After(1 * time.Second):
		t.Fatal("Timed out waiting for message delivery")
	}
	return types.Message{}
}
