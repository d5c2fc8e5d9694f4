package reactor

import (
	"github.com/pkg/errors"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/common"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

//
// ChannelRegistry holds the channel descriptors a reactor receives on,
// together with the message handler bound to each channel. It is populated
// once at registration time and read-only afterwards.
//
type ChannelRegistry struct {
	descriptors []types.ChannelDescriptor
	handlerMap  map[common.ChannelIDEnum]p2p.MessageHandler // map: channelID |-> handler
}

// NewChannelRegistry creates an empty ChannelRegistry
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{
		handlerMap: make(map[common.ChannelIDEnum]p2p.MessageHandler),
	}
}

// AddHandler records the handler against every channel it declares. Fails
// with p2p.ErrDuplicateChannelID if any channel ID is already taken.
func (cr *ChannelRegistry) AddHandler(handler p2p.MessageHandler) error {
	for _, descriptor := range handler.GetChannelDescriptors() {
		if _, exists := cr.handlerMap[descriptor.ID]; exists {
			return errors.Wrapf(p2p.ErrDuplicateChannelID, "channelID: %v", descriptor.ID)
		}
		cr.handlerMap[descriptor.ID] = handler
		cr.descriptors = append(cr.descriptors, descriptor)
	}
	return nil
}

// GetHandler returns the handler bound to the given channel (if any)
func (cr *ChannelRegistry) GetHandler(channelID common.ChannelIDEnum) (p2p.MessageHandler, bool) {
	handler, exists := cr.handlerMap[channelID]
	return handler, exists
}

// HasChannel indicates whether the given channel has been declared
func (cr *ChannelRegistry) HasChannel(channelID common.ChannelIDEnum) bool {
	_, exists := cr.handlerMap[channelID]
	return exists
}

// GetChannelDescriptors returns the declared channel descriptors
func (cr *ChannelRegistry) GetChannelDescriptors() []types.ChannelDescriptor {
	ret := make([]types.ChannelDescriptor, len(cr.descriptors))
	copy(ret, cr.descriptors)
	return ret
}

// GetTotalNumChannels returns the number of declared channels
func (cr *ChannelRegistry) GetTotalNumChannels() uint {
	return uint(len(cr.descriptors))
}
