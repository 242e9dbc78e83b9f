package wallet

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sifir-io/sifir-sdk/observer"
)

// ProgressServer relays a Wallet's SyncProgress events to any number of
// connected websocket clients. It is optional and off by default: most
// embedders observe SyncProgress directly in-process via observer.Slot,
// but a host that wants to show sync status in a separate UI process can
// wire this up instead.
type ProgressServer struct {
	upgrader websocket.Upgrader

	mtx     sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewProgressServer returns a ProgressServer with no clients connected
// yet.
func NewProgressServer() *ProgressServer {
	return &ProgressServer{
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Observer returns a DataObserver that broadcasts every emitted line to
// all currently connected clients; wire it to a Wallet's SyncProgress slot.
func (p *ProgressServer) Observer() observer.DataObserver {
	return observer.FuncObserver{
		Data: p.broadcast,
	}
}

func (p *ProgressServer) broadcast(msg string) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	for conn := range p.clients {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			conn.Close()
			delete(p.clients, conn)
		}
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection as a broadcast target until it disconnects.
func (p *ProgressServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("progress server: upgrade failed: %v", err)
		return
	}

	p.mtx.Lock()
	p.clients[conn] = struct{}{}
	p.mtx.Unlock()

	// Drain and discard client frames; this endpoint is broadcast-only.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				p.mtx.Lock()
				delete(p.clients, conn)
				p.mtx.Unlock()
				conn.Close()
				return
			}
		}
	}()
}
