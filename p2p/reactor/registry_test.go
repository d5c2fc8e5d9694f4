package reactor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p"
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/p2p/types"
)

func TestChannelRegistryAddHandler(t *testing.T) {
	assert := assert.New(t)

	registry := NewChannelRegistry()
	handler := newTestHandler(
		types.ChannelDescriptor{ID: 3, Priority: 1},
		types.ChannelDescriptor{ID: 7, Priority: 2},
	)

	err := registry.AddHandler(handler)
	assert.Nil(err)
	assert.Equal(uint(2), registry.GetTotalNumChannels())
	assert.True(registry.HasChannel(3))
	assert.True(registry.HasChannel(7))
	assert.False(registry.HasChannel(9))

	boundHandler, exists := registry.GetHandler(3)
	assert.True(exists)
	assert.Equal(p2p.MessageHandler(handler), boundHandler)
}

func TestChannelRegistryRejectsDuplicateChannelID(t *testing.T) {
	assert := assert.New(t)

	registry := NewChannelRegistry()
	err := registry.AddHandler(newTestHandler(types.ChannelDescriptor{ID: 3, Priority: 1}))
	assert.Nil(err)

	err = registry.AddHandler(newTestHandler(
		types.ChannelDescriptor{ID: 5, Priority: 1},
		types.ChannelDescriptor{ID: 3, Priority: 2},
	))
	assert.NotNil(err)
	assert.Equal(p2p.ErrDuplicateChannelID, errors.Cause(err))
}
