package types

import (
	"fmt"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common"
)

//
// ChannelDescriptor declares one logical channel a reactor wishes to receive messages on
//
type ChannelDescriptor struct {
	ID       common.ChannelIDEnum
	Priority uint
}

//
// Message is one inbound message unit, tagged with its source peer and channel
//
type Message struct {
	PeerID    string
	ChannelID common.ChannelIDEnum
	Content   common.Bytes
}

// String returns the string representation of the message
func (m Message) String() string {
	return fmt.Sprintf("Message{peerID: %v, channelID: %v, %v bytes}", m.PeerID, m.ChannelID, len(m.Content))
}
