// pkg/network/gateway.go
package network

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

const (
	gatewayWriteWait = 10 * time.Second
	gatewayPongWait  = 60 * time.Second
	// Pings must arrive well inside the pong deadline.
	gatewayPingPeriod = (gatewayPongWait * 9) / 10
)

// ObserverGateway serves read-only WebSocket spectators. Observers receive
// the same state updates as TCP clients, encoded as JSON for browser
// consumption, and cannot send commands.
type ObserverGateway struct {
	upgrader websocket.Upgrader

	observers map[*observerConn]struct{}
	mu        sync.Mutex

	sim    *engine.Simulation
	logger *logging.Logger
}

// observerConn is one spectator connection with a buffered send queue, so a
// slow browser drops frames instead of stalling the broadcast.
type observerConn struct {
	ws   *websocket.Conn
	send chan engine.StateUpdate
}

// NewObserverGateway creates a gateway over the given simulation.
func NewObserverGateway(sim *engine.Simulation, logger *logging.Logger) *ObserverGateway {
	return &ObserverGateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Spectator data is world-visible; any origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		observers: make(map[*observerConn]struct{}),
		sim:       sim,
		logger:    logger,
	}
}

// ServeHTTP upgrades a spectator connection and streams state to it.
func (g *ObserverGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error(r.Context(), "websocket upgrade failed", err)
		return
	}

	oc := &observerConn{
		ws:   ws,
		send: make(chan engine.StateUpdate, 8),
	}

	g.mu.Lock()
	g.observers[oc] = struct{}{}
	g.mu.Unlock()

	g.logger.Info(r.Context(), "observer connected",
		"remote", ws.RemoteAddr().String(),
		"observers", g.ObserverCount(),
	)

	// Seed the new observer before it joins the diff stream.
	snap := g.sim.Snapshot()
	oc.send <- engine.StateUpdate{Tick: snap.Tick, Keyframe: true, Bodies: snap.Bodies}

	go g.writeLoop(oc)
	go g.readLoop(oc)
}

// Broadcast queues an update for every observer. Observers with a full
// queue miss this update and recover at the next keyframe.
func (g *ObserverGateway) Broadcast(update engine.StateUpdate) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for oc := range g.observers {
		select {
		case oc.send <- update:
		default:
		}
	}
}

// ObserverCount returns the number of connected spectators.
func (g *ObserverGateway) ObserverCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.observers)
}

// Close disconnects every observer.
func (g *ObserverGateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for oc := range g.observers {
		oc.ws.Close()
		delete(g.observers, oc)
	}
}

// remove drops one observer and closes its socket.
func (g *ObserverGateway) remove(oc *observerConn) {
	g.mu.Lock()
	_, present := g.observers[oc]
	delete(g.observers, oc)
	g.mu.Unlock()

	if present {
		oc.ws.Close()
		g.logger.Info(context.Background(), "observer disconnected",
			"remote", oc.ws.RemoteAddr().String(),
		)
	}
}

// writeLoop sends queued updates and keepalive pings to one observer.
func (g *ObserverGateway) writeLoop(oc *observerConn) {
	ticker := time.NewTicker(gatewayPingPeriod)
	defer func() {
		ticker.Stop()
		g.remove(oc)
	}()

	for {
		select {
		case update := <-oc.send:
			oc.ws.SetWriteDeadline(time.Now().Add(gatewayWriteWait))
			if err := oc.ws.WriteJSON(update); err != nil {
				return
			}
		case <-ticker.C:
			oc.ws.SetWriteDeadline(time.Now().Add(gatewayWriteWait))
			if err := oc.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop consumes control frames from the observer. Spectators are
// read-only, so any data message is discarded.
func (g *ObserverGateway) readLoop(oc *observerConn) {
	defer g.remove(oc)

	oc.ws.SetReadLimit(512)
	oc.ws.SetReadDeadline(time.Now().Add(gatewayPongWait))
	oc.ws.SetPongHandler(func(string) error {
		oc.ws.SetReadDeadline(time.Now().Add(gatewayPongWait))
		return nil
	})

	for {
		if _, _, err := oc.ws.ReadMessage(); err != nil {
			return
		}
	}
}
