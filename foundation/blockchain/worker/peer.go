package worker

// staleAfterIntervals is how many quiet sync intervals a peer survives
// before it is dropped from the known peer set.
const staleAfterIntervals = 4

// peerOperations handles the periodic peer and chain synchronization.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation syncs with the known peers and then announces this
// node to the latest peer list.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	// Peers that have gone quiet for several rounds are expired before
	// this round's exchanges.
	w.state.DropStaleKnownPeers(w.syncInterval * staleAfterIntervals)

	w.Sync()

	// Let the latest peer list know this node is available.
	w.state.NetSendNodeAvailableToPeers()
}
