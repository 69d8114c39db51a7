// Package peer maintains the peer related information such as the set
// of known peers, their observed health, and their reported status.
package peer

import (
	"sync"
	"time"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Host string
}

// New constructs a new info value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// PeerStatus represents information about the status of any given peer.
type PeerStatus struct {
	LatestBlockHash   string `json:"latest_block_hash"`
	LatestBlockNumber uint64 `json:"latest_block_number"`
	KnownPeers        []Peer `json:"known_peers"`
}

// =============================================================================

// record carries the local bookkeeping kept for each known peer.
type record struct {
	lastSeen time.Time
	failures int
	height   uint64
}

// PeerSet represents the data representation to maintain a set of known
// peers along with what we last observed about each of them.
type PeerSet struct {
	mu  sync.RWMutex
	set map[Peer]*record
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[Peer]*record),
	}
}

// Add adds a new node to the set. It reports true when the peer was not
// already known.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[peer]; !exists {
		ps.set[peer] = &record{lastSeen: time.Now()}
		return true
	}

	return false
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Count returns the number of known peers.
func (ps *PeerSet) Count() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Copy returns a list of the known peers, excluding the specified host.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for peer := range ps.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	return peers
}

// MarkSeen records a successful exchange with the peer, resetting its
// failure count and remembering the height it reported.
func (ps *PeerSet) MarkSeen(peer Peer, height uint64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	rec, exists := ps.set[peer]
	if !exists {
		rec = &record{}
		ps.set[peer] = rec
	}

	rec.lastSeen = time.Now()
	rec.failures = 0
	rec.height = height
}

// MarkFailure records a failed exchange with the peer and reports the
// updated consecutive failure count.
func (ps *PeerSet) MarkFailure(peer Peer) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	rec, exists := ps.set[peer]
	if !exists {
		return 0
	}

	rec.failures++
	return rec.failures
}

// DropStale removes peers that have not been heard from within ttl and
// returns the peers that were dropped. Failure counting catches peers
// that answer with errors; the timeout catches peers that stop answering
// at all.
func (ps *PeerSet) DropStale(ttl time.Duration) []Peer {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()

	var dropped []Peer
	for peer, rec := range ps.set {
		if now.Sub(rec.lastSeen) > ttl {
			delete(ps.set, peer)
			dropped = append(dropped, peer)
		}
	}

	return dropped
}

// Height returns the last block height the peer reported.
func (ps *PeerSet) Height(peer Peer) uint64 {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if rec, exists := ps.set[peer]; exists {
		return rec.height
	}
	return 0
}
