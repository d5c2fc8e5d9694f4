package ping

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

var logger *log.Entry = log.WithFields(log.Fields{"prefix": "ping"})

// Signal values carried on the ping channel
const (
	PingSignal = byte(0x1)
	PongSignal = byte(0x2)
)

//
// Sender delivers outbound messages to a peer. Satisfied by the dispatcher.
//
type Sender interface {
	Send(peerID string, message types.Message) bool
}

//
// Handler answers pings on the well-known ping channel and tracks the
// pongs received per peer
//
type Handler struct {
	sender Sender

	mutex     sync.Mutex
	pongCount map[string]int // map: peerID |-> number of pongs received
}

var _ p2p.MessageHandler = (*Handler)(nil)

// NewHandler creates a ping Handler sending replies through the given Sender
func NewHandler(sender Sender) *Handler {
	return &Handler{
		sender:    sender,
		pongCount: make(map[string]int),
	}
}

// GetChannelDescriptors implements the p2p.MessageHandler interface
func (h *Handler) GetChannelDescriptors() []types.ChannelDescriptor {
	return []types.ChannelDescriptor{
		{ID: common.ChannelIDPing, Priority: 1},
	}
}

// HandleMessage implements the p2p.MessageHandler interface
func (h *Handler) HandleMessage(message types.Message) error {
	if len(message.Content) != 1 {
		return errors.Errorf("invalid ping/pong payload from peer %v: %v bytes", message.PeerID, len(message.Content))
	}

	switch message.Content[0] {
	case PingSignal:
		pong := types.Message{
			PeerID:    message.PeerID,
			ChannelID: common.ChannelIDPing,
			Content:   common.Bytes{PongSignal},
		}
		if !h.sender.Send(message.PeerID, pong) {
			logger.Warnf("Failed to send pong to peer %v", message.PeerID)
		}
	case PongSignal:
		h.mutex.Lock()
		h.pongCount[message.PeerID]++
		h.mutex.Unlock()
	default:
		return errors.Errorf("invalid ping/pong signal from peer %v: %v", message.PeerID, message.Content[0])
	}
	return nil
}

// Ping sends a ping to the given peer
func (h *Handler) Ping(peerID string) bool {
	message := types.Message{
		PeerID:    peerID,
		ChannelID: common.ChannelIDPing,
		Content:   common.Bytes{PingSignal},
	}
	return h.sender.Send(peerID, message)
}

// PongCount returns the number of pongs received from the given peer
func (h *Handler) PongCount(peerID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.pongCount[peerID]
}
