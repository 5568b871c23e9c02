package peernet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/logging"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/ledger"
)

// frame is the wire message peers exchange: a node's id plus its current
// candidate chain, JSON-encoded via ledger.MarshalChain/UnmarshalChain.
type frame struct {
	NodeID string          `json:"node_id"`
	Chain  json.RawMessage `json:"chain"`
}

var dialTimeout = 3 * time.Second

// WSNetwork is a Network implementation over gorilla/websocket. Each node
// both serves an inbound handler (Handler) for peers that dial it, and
// dials a configured set of peer addresses on Broadcast. There is no
// persistent session management: a connection is opened, one frame is
// written, and it closes — acceptable at the consensus monitor's 5s
// cadence and avoids tracking reconnect state for a dependency the
// teacher otherwise carries unused.
type WSNetwork struct {
	nodeID string
	peers  []string // ws:// addresses of peers to dial

	mu       sync.Mutex
	received map[string][]ledger.Block

	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewWSNetwork creates a WSNetwork that dials peerAddresses on Broadcast
// and accepts inbound connections via Handler.
func NewWSNetwork(nodeID string, peerAddresses []string, logger *logging.Logger) *WSNetwork {
	return &WSNetwork{
		nodeID:   nodeID,
		peers:    peerAddresses,
		received: make(map[string][]ledger.Block),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Handler upgrades an inbound HTTP request to a websocket connection,
// reads exactly one frame, records it, and closes. Mount at the peer
// listen address (e.g. "/peer").
func (n *WSNetwork) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if n.logger != nil {
			n.logger.Error(r.Context(), "peernet: upgrade failed", err, nil)
		}
		return
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		if n.logger != nil {
			n.logger.Error(r.Context(), "peernet: decode frame failed", err, nil)
		}
		return
	}
	chain, err := ledger.UnmarshalChain(f.Chain)
	if err != nil {
		if n.logger != nil {
			n.logger.Error(r.Context(), "peernet: decode chain failed", err, nil)
		}
		return
	}

	n.mu.Lock()
	n.received[f.NodeID] = chain
	n.mu.Unlock()
}

// Broadcast dials every configured peer and sends this node's candidate
// chain. Individual dial/send failures are logged and skipped — a
// partially delivered broadcast is not itself an error, since the
// consensus monitor tolerates missing candidates.
func (n *WSNetwork) Broadcast(ctx context.Context, chain []ledger.Block) error {
	chainJSON, err := ledger.MarshalChain(chain)
	if err != nil {
		return fmt.Errorf("peernet: marshal candidate chain: %w", err)
	}
	payload, err := json.Marshal(frame{NodeID: n.nodeID, Chain: chainJSON})
	if err != nil {
		return fmt.Errorf("peernet: marshal frame: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	for _, addr := range n.peers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, _, err := dialer.DialContext(ctx, addr, nil)
		if err != nil {
			if n.logger != nil {
				n.logger.Error(ctx, "peernet: dial peer failed", err, map[string]interface{}{"peer": addr})
			}
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil && n.logger != nil {
			n.logger.Error(ctx, "peernet: send to peer failed", err, map[string]interface{}{"peer": addr})
		}
		conn.Close()
	}
	return nil
}

// Candidates returns the most recent chain received from each peer — it
// does not clear the store, so a peer's most recent broadcast remains
// visible until superseded.
func (n *WSNetwork) Candidates(_ context.Context) ([][]ledger.Block, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([][]ledger.Block, 0, len(n.received))
	for _, chain := range n.received {
		out = append(out, chain)
	}
	return out, nil
}

func (n *WSNetwork) PeerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.received)
}
