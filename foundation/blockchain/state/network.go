package state

import (
	"fmt"

	"github.com/blockylab/blocky/foundation/blockchain/database"
	"github.com/blockylab/blocky/foundation/blockchain/peer"
	"golang.org/x/sync/errgroup"
)

// A peer that fails this many exchanges in a row is dropped from the
// known peer list. It can re-register when it comes back.
const maxPeerFailures = 3

// The node to node API prefix on each peer.
const baseURL = "http://%s/v1/node"

// =============================================================================

// NetRequestPeerStatus looks at the state of a peer: its latest block and
// the peers it knows about.
func (s *State) NetRequestPeerStatus(pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var status peer.PeerStatus
	resp, err := s.client.R().SetResult(&status).Get(url)
	if err != nil {
		s.markPeerFailure(pr)
		return peer.PeerStatus{}, err
	}
	if resp.IsError() {
		s.markPeerFailure(pr)
		return peer.PeerStatus{}, fmt.Errorf("peer %s status: %s", pr.Host, resp.Status())
	}

	s.knownPeers.MarkSeen(pr, status.LatestBlockNumber)

	return status, nil
}

// NetRequestPeerMempool retrieves the set of pending transactions a peer
// is holding.
func (s *State) NetRequestPeerMempool(pr peer.Peer) ([]database.BlockTx, error) {
	s.evHandler("state: NetRequestPeerMempool: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerMempool: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/tx/list", fmt.Sprintf(baseURL, pr.Host))

	var pool []database.BlockTx
	resp, err := s.client.R().SetResult(&pool).Get(url)
	if err != nil {
		s.markPeerFailure(pr)
		return nil, err
	}
	if resp.IsError() {
		s.markPeerFailure(pr)
		return nil, fmt.Errorf("peer %s mempool: %s", pr.Host, resp.Status())
	}

	return pool, nil
}

// NetRequestPeerChain retrieves the peer's full chain so it can be
// considered against the local one. Each block's hash is re-derived
// on receipt; a peer can't hand us a block whose hash doesn't reproduce.
func (s *State) NetRequestPeerChain(pr peer.Peer) ([]database.Block, error) {
	s.evHandler("state: NetRequestPeerChain: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerChain: completed: %s", pr.Host)

	url := fmt.Sprintf("%s/block/list/%d/latest", fmt.Sprintf(baseURL, pr.Host), 1)

	var blocksData []database.BlockData
	resp, err := s.client.R().SetResult(&blocksData).Get(url)
	if err != nil {
		s.markPeerFailure(pr)
		return nil, err
	}
	if resp.IsError() {
		s.markPeerFailure(pr)
		return nil, fmt.Errorf("peer %s chain: %s", pr.Host, resp.Status())
	}

	blocks := make([]database.Block, len(blocksData))
	for i, blockData := range blocksData {
		block, err := database.ToBlock(blockData)
		if err != nil {
			return nil, err
		}
		blocks[i] = block
	}

	return blocks, nil
}

// =============================================================================

// NetSendBlockToPeers proposes a freshly mined block to every known peer
// concurrently. Peers that can't be reached accumulate failures; the
// block itself is already committed locally and losing a peer is not an
// error of the block.
func (s *State) NetSendBlockToPeers(block database.Block) error {
	s.evHandler("state: NetSendBlockToPeers: started: block[%s]", block.Hash())
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	blockData := database.NewBlockData(block)

	var g errgroup.Group
	for _, pr := range s.RetrieveKnownPeers() {
		pr := pr
		g.Go(func() error {
			url := fmt.Sprintf("%s/block/propose", fmt.Sprintf(baseURL, pr.Host))

			resp, err := s.client.R().SetBody(blockData).Post(url)
			if err != nil {
				s.markPeerFailure(pr)
				return fmt.Errorf("peer %s: %w", pr.Host, err)
			}
			if resp.IsError() {
				return fmt.Errorf("peer %s: %s: %s", pr.Host, resp.Status(), resp.String())
			}
			return nil
		})
	}

	return g.Wait()
}

// NetSendTxToPeers shares a transaction with every known peer
// concurrently.
func (s *State) NetSendTxToPeers(tx database.BlockTx) {
	s.evHandler("state: NetSendTxToPeers: started: tx[%s]", tx.Hash())
	defer s.evHandler("state: NetSendTxToPeers: completed")

	var g errgroup.Group
	for _, pr := range s.RetrieveKnownPeers() {
		pr := pr
		g.Go(func() error {
			url := fmt.Sprintf("%s/tx", fmt.Sprintf(baseURL, pr.Host))

			if resp, err := s.client.R().SetBody(tx).Post(url); err != nil || resp.IsError() {
				s.evHandler("state: NetSendTxToPeers: WARNING: peer %s not reachable", pr.Host)
				s.markPeerFailure(pr)
			}
			return nil
		})
	}

	g.Wait()
}

// NetSendNodeAvailableToPeers tells every known peer this node exists and
// accepts traffic.
func (s *State) NetSendNodeAvailableToPeers() {
	s.evHandler("state: NetSendNodeAvailableToPeers: started")
	defer s.evHandler("state: NetSendNodeAvailableToPeers: completed")

	host := peer.New(s.RetrieveHost())

	var g errgroup.Group
	for _, pr := range s.RetrieveKnownPeers() {
		pr := pr
		g.Go(func() error {
			url := fmt.Sprintf("%s/peer", fmt.Sprintf(baseURL, pr.Host))

			if resp, err := s.client.R().SetBody(host).Post(url); err != nil || resp.IsError() {
				s.evHandler("state: NetSendNodeAvailableToPeers: WARNING: peer %s not reachable", pr.Host)
				s.markPeerFailure(pr)
			}
			return nil
		})
	}

	g.Wait()
}

// =============================================================================

// markPeerFailure counts a failed exchange and drops the peer once it
// crosses the threshold.
func (s *State) markPeerFailure(pr peer.Peer) {
	failures := s.knownPeers.MarkFailure(pr)
	if failures >= maxPeerFailures {
		s.evHandler("state: markPeerFailure: dropping peer %s after %d failures", pr.Host, failures)
		s.knownPeers.Remove(pr)
	}
}
