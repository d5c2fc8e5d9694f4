package p2p

import (
	"github.com/pkg/errors"
)

// Configuration errors, fatal to startup.
var (
	ErrDuplicateChannelID = errors.New("duplicate channel ID")
	ErrAlreadyRegistered  = errors.New("reactor already registered")
)

// Lifecycle ordering errors, reported to the dispatcher. They indicate an
// orchestration bug in the caller rather than bad remote data.
var (
	ErrNotRegistered    = errors.New("reactor not registered")
	ErrAlreadyStarted   = errors.New("already started")
	ErrNotRunning       = errors.New("not running")
	ErrPeersStillActive = errors.New("peers still active")
	ErrAlreadyKnown     = errors.New("peer already known")
	ErrAlreadyActive    = errors.New("peer already active")
)

// Protocol violations, isolated to the offending message. Never mutate
// reactor state and never halt the reactor.
var (
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrMessageQueueFull = errors.New("message queue full")
)
