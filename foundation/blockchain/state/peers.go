package state

import (
	"time"

	"github.com/blockylab/blocky/foundation/blockchain/peer"
)

// AddKnownPeer provides the ability to add a new peer. It reports true
// when the peer was not already known.
func (s *State) AddKnownPeer(pr peer.Peer) bool {
	if pr.Match(s.host) {
		return false
	}

	return s.knownPeers.Add(pr)
}

// RemoveKnownPeer provides the ability to remove a peer.
func (s *State) RemoveKnownPeer(pr peer.Peer) {
	s.knownPeers.Remove(pr)
}

// DropStaleKnownPeers removes peers that have gone quiet for longer
// than ttl.
func (s *State) DropStaleKnownPeers(ttl time.Duration) {
	for _, pr := range s.knownPeers.DropStale(ttl) {
		s.evHandler("state: DropStaleKnownPeers: dropped peer %s", pr.Host)
	}
}
