package worker

import (
	"github.com/blockylab/blocky/foundation/blockchain/peer"
)

// Sync updates the peer list, the mempool, and the chain from the known
// peers. A peer holding a stronger chain than ours triggers a full
// consideration of it.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	for _, pr := range w.state.RetrieveKnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: sync: requestPeerStatus: %s: ERROR: %s", pr.Host, err)
			continue
		}

		// Add new peers to this node's list.
		w.addNewPeers(peerStatus.KnownPeers)

		// Retrieve the mempool from the peer and share what we don't
		// already have.
		pool, err := w.state.NetRequestPeerMempool(pr)
		if err != nil {
			w.evHandler("worker: sync: requestPeerMempool: %s: ERROR: %s", pr.Host, err)
		}
		for _, tx := range pool {
			if err := w.state.UpsertNodeTransaction(tx); err != nil {
				w.evHandler("worker: sync: requestPeerMempool: %s: tx[%s]: %s", pr.Host, tx.Hash(), err)
			}
		}

		// If this peer claims more blocks than we hold, pull its chain
		// and let the fork choice rule decide.
		if peerStatus.LatestBlockNumber > w.state.QueryHeight() {
			w.evHandler("worker: sync: requestPeerChain: %s: latestBlockNumber[%d]", pr.Host, peerStatus.LatestBlockNumber)

			blocks, err := w.state.NetRequestPeerChain(pr)
			if err != nil {
				w.evHandler("worker: sync: requestPeerChain: %s: ERROR: %s", pr.Host, err)
				continue
			}

			if err := w.state.ConsiderChain(blocks); err != nil {
				w.evHandler("worker: sync: considerChain: %s: rejected: %s", pr.Host, err)
			}
		}
	}
}

// addNewPeers takes the list of known peers and makes sure they are
// included in this node's list of known peers.
func (w *Worker) addNewPeers(knownPeers []peer.Peer) {
	w.evHandler("worker: addNewPeers: started")
	defer w.evHandler("worker: addNewPeers: completed")

	for _, pr := range knownPeers {
		if w.state.AddKnownPeer(pr) {
			w.evHandler("worker: addNewPeers: added peer %s", pr.Host)
		}
	}
}
