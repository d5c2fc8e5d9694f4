package common

import (
	"github.com/spf13/viper"
)

const (
	// CfgP2PMessageQueueSize sets the per-peer inbound message queue size.
	CfgP2PMessageQueueSize = "p2p.messageQueueSize"
	// CfgP2PRemovedPeerCacheSize sets the size of the recently removed peer cache.
	CfgP2PRemovedPeerCacheSize = "p2p.removedPeerCacheSize"
	// CfgP2PPingInterval sets the heartbeat interval (in seconds).
	CfgP2PPingInterval = "p2p.pingInterval"

	// CfgLogDebug determines whether to output debug level logs.
	CfgLogDebug = "log.debug"
)

// InitialConfig is the default configuration produced by the init command.
const InitialConfig = `# Node configuration
p2p:
  messageQueueSize: 512
  removedPeerCacheSize: 1024
  pingInterval: 10
log:
  debug: false
`

func init() {
	viper.SetDefault(CfgP2PMessageQueueSize, 512)
	viper.SetDefault(CfgP2PRemovedPeerCacheSize, 1024)
	viper.SetDefault(CfgP2PPingInterval, 10)

	viper.SetDefault(CfgLogDebug, false)
}

// WriteInitialConfig writes initial config file to file system.
func WriteInitialConfig(filePath string) error {
	return WriteFileAtomic(filePath, []byte(InitialConfig), 0600)
}
