package reactor

import (
	"context"
	"sync"
)

//
// Routine is one unit of concurrent work bound to a single peer. Its
// lifetime is contained within the lifetime of the peer's active state.
//
type Routine struct {
	name   string
	peerID string
	cancel context.CancelFunc
	done   chan struct{}
}

// Name returns the name of the routine
func (rt *Routine) Name() string {
	return rt.name
}

// PeerID returns the ID of the peer the routine is bound to
func (rt *Routine) PeerID() string {
	return rt.peerID
}

//
// RoutineSet owns the mapping from peer ID to that peer's worker routines.
// Cancellation is requested synchronously and acknowledged asynchronously:
// a peer stays marked as draining until every routine has exited.
//
type RoutineSet struct {
	mutex sync.Mutex

	routineMap map[string][]*Routine // map: peerID |-> routines
	draining   map[string]bool       // peers with cancellation requested but not yet acknowledged
}

// NewRoutineSet creates an empty RoutineSet
func NewRoutineSet() *RoutineSet {
	return &RoutineSet{
		routineMap: make(map[string][]*Routine),
		draining:   make(map[string]bool),
	}
}

// Spawn starts the given work function as a named routine bound to the peer
func (rs *RoutineSet) Spawn(ctx context.Context, peerID string, name string, work func(ctx context.Context)) *Routine {
	c, cancel := context.WithCancel(ctx)
	routine := &Routine{
		name:   name,
		peerID: peerID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	rs.mutex.Lock()
	rs.routineMap[peerID] = append(rs.routineMap[peerID], routine)
	rs.mutex.Unlock()

	go func() {
		defer close(routine.done)
		work(c)
	}()

	return routine
}

// CancelAll signals every routine bound to the peer to stop and blocks
// until all of them have acknowledged. Calling it for a peer with no
// routines is a no-op.
func (rs *RoutineSet) CancelAll(peerID string) {
	rs.mutex.Lock()
	routines := rs.routineMap[peerID]
	delete(rs.routineMap, peerID)
	if len(routines) > 0 {
		rs.draining[peerID] = true
	}
	for _, routine := range routines {
		routine.cancel()
	}
	rs.mutex.Unlock()

	for _, routine := range routines {
		<-routine.done
	}

	if len(routines) > 0 {
		rs.mutex.Lock()
		delete(rs.draining, peerID)
		rs.mutex.Unlock()
	}
}

// Draining indicates whether the peer has routines with cancellation
// requested but not yet fully stopped
func (rs *RoutineSet) Draining(peerID string) bool {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	return rs.draining[peerID]
}

// NumRoutines returns the number of routines currently bound to the peer
func (rs *RoutineSet) NumRoutines(peerID string) int {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	return len(rs.routineMap[peerID])
}

// Wait blocks until every routine in the set has exited
func (rs *RoutineSet) Wait() {
	rs.mutex.Lock()
	allRoutines := []*Routine{}
	for _, routines := range rs.routineMap {
		allRoutines = append(allRoutines, routines...)
	}
	rs.mutex.Unlock()

	for _, routine := range allRoutines {
		<-routine.done
	}
}
