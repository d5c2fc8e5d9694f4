package simulation

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/dispatcher"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

var logger *log.Entry = log.WithFields(log.Fields{"prefix": "simnet"})

// Envelope wraps a message with network information for delivery.
type Envelope struct {
	From      string
	To        string
	ChannelID common.ChannelIDEnum
	Payload   common.Bytes
}

//
// Simnet represents an instance of a simulated network. It stands in for
// the real transport: every endpoint owns a dispatcher, and inbound
// envelopes are handed to the destination endpoint's dispatcher.
//
type Simnet struct {
	mutex     sync.Mutex
	endpoints map[string]*SimnetEndpoint
	messages  chan Envelope

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSimnet creates a new instance of Simnet
func NewSimnet() *Simnet {
	return &Simnet{
		endpoints: make(map[string]*SimnetEndpoint),
		messages:  make(chan Envelope, viper.GetInt(common.CfgP2PMessageQueueSize)),
	}
}

// AddEndpoint adds an endpoint with the given ID to the Simnet instance
func (sn *Simnet) AddEndpoint(id string) *SimnetEndpoint {
	endpoint := &SimnetEndpoint{
		id:         id,
		network:    sn,
		dispatcher: dispatcher.NewDispatcher(),
	}

	sn.mutex.Lock()
	sn.endpoints[id] = endpoint
	sn.mutex.Unlock()

	return endpoint
}

// Start starts all endpoint dispatchers and the delivery goroutine
func (sn *Simnet) Start(ctx context.Context) error {
	c, cancel := context.WithCancel(ctx)
	sn.ctx = c
	sn.cancel = cancel

	sn.mutex.Lock()
	endpoints := make([]*SimnetEndpoint, 0, len(sn.endpoints))
	for _, endpoint := range sn.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	sn.mutex.Unlock()

	for _, endpoint := range endpoints {
		if err := endpoint.dispatcher.Start(c); err != nil {
			cancel()
			return err
		}
	}

	sn.wg.Add(1)
	go sn.deliverLoop(c)
	return nil
}

// Stop stops all endpoint dispatchers and the delivery goroutine
func (sn *Simnet) Stop() {
	sn.mutex.Lock()
	endpoints := make([]*SimnetEndpoint, 0, len(sn.endpoints))
	for _, endpoint := range sn.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	sn.mutex.Unlock()

	for _, endpoint := range endpoints {
		if err := endpoint.dispatcher.Stop(); err != nil {
			logger.Errorf("Failed to stop dispatcher of endpoint %v: %v", endpoint.ID(), err)
		}
	}
	sn.cancel()
}

// Wait suspends the caller goroutine
func (sn *Simnet) Wait() {
	sn.wg.Wait()

	sn.mutex.Lock()
	endpoints := make([]*SimnetEndpoint, 0, len(sn.endpoints))
	for _, endpoint := range sn.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	sn.mutex.Unlock()

	for _, endpoint := range endpoints {
		endpoint.dispatcher.Wait()
	}
}

// Connect introduces the two endpoints to each other: each side's
// dispatcher receives a peer handle for the other side
func (sn *Simnet) Connect(idA, idB string) error {
	sn.mutex.Lock()
	endpointA, existsA := sn.endpoints[idA]
	endpointB, existsB := sn.endpoints[idB]
	sn.mutex.Unlock()

	if !existsA || !existsB {
		return errors.Errorf("unknown endpoint(s): %v, %v", idA, idB)
	}

	peerB := &SimPeer{id: idB, localID: idA, network: sn}
	peerA := &SimPeer{id: idA, localID: idB, network: sn}

	if err := endpointA.dispatcher.AddPeer(peerB); err != nil {
		return err
	}
	if err := endpointB.dispatcher.AddPeer(peerA); err != nil {
		endpointA.dispatcher.StopPeerForError(peerB, "connect failed")
		return err
	}
	return nil
}

func (sn *Simnet) deliverLoop(ctx context.Context) {
	defer sn.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case envelope := <-sn.messages:
			sn.mutex.Lock()
			endpoint, exists := sn.endpoints[envelope.To]
			sn.mutex.Unlock()

			if !exists {
				logger.Warnf("Dropping envelope for unknown endpoint %v", envelope.To)
				continue
			}

			message := types.Message{
				PeerID:    envelope.From,
				ChannelID: envelope.ChannelID,
				Content:   envelope.Payload,
			}
			if err := endpoint.dispatcher.Receive(message); err != nil {
				logger.Debugf("Endpoint %v rejected message from %v: %v", envelope.To, envelope.From, err)
			}
		}
	}
}

//
// SimnetEndpoint models one node attached to the simulated network
//
type SimnetEndpoint struct {
	id         string
	network    *Simnet
	dispatcher *dispatcher.Dispatcher
}

// ID returns the ID of the endpoint
func (se *SimnetEndpoint) ID() string {
	return se.id
}

// Dispatcher returns the dispatcher owned by the endpoint
func (se *SimnetEndpoint) Dispatcher() *dispatcher.Dispatcher {
	return se.dispatcher
}

//
// SimPeer is the Peer handle for a remote simnet endpoint
//
type SimPeer struct {
	id      string // remote endpoint ID
	localID string // stamped as the source on outbound envelopes
	network *Simnet
	stopped uint32
}

var _ p2p.Peer = (*SimPeer)(nil)

// ID implements the p2p.Peer interface
func (sp *SimPeer) ID() string {
	return sp.id
}

// Send implements the p2p.Peer interface. It is non-blocking: the send
// fails when the network queue is saturated.
func (sp *SimPeer) Send(channelID common.ChannelIDEnum, payload common.Bytes) bool {
	if atomic.LoadUint32(&sp.stopped) == 1 {
		return false
	}
	select {
	case sp.network.messages <- Envelope{From: sp.localID, To: sp.id, ChannelID: channelID, Payload: payload}:
		return true
	default:
		return false
	}
}

// Stop implements the p2p.Peer interface
func (sp *SimPeer) Stop() {
	atomic.StoreUint32(&sp.stopped, 1)
}
