// pkg/network/server_test.go
package network

import (
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

// startTestServer brings up a server on an ephemeral port and returns it
// with its address.
func startTestServer(t *testing.T, maxClients int) (*SimServer, string) {
	t.Helper()

	cfg := config.DefaultConfig()
	bus := event.NewBus()
	logger := logging.NewLoggerWithOutput(io.Discard)
	sim := engine.NewSimulation(cfg, bus, logger)
	server := NewSimServer(sim, maxClients, nil, bus, logger)

	if err := server.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("server start: %v", err)
	}
	t.Cleanup(server.Stop)

	return server, server.Addr().String()
}

func connectTestClient(t *testing.T, addr, name string) *SimClient {
	t.Helper()

	client := NewSimClient(event.NewBus(), logging.NewLoggerWithOutput(io.Discard))
	if err := client.Connect(addr, name); err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { client.Disconnect() })
	return client
}

func TestHandshakeAssignsBodyAndPlanets(t *testing.T) {
	server, addr := startTestServer(t, 4)
	client := connectTestClient(t, addr, "pilot")

	if client.BodyID() == 0 {
		t.Error("handshake did not assign a body")
	}
	if client.FixedTimeStep() <= 0 {
		t.Errorf("fixed step = %v, want positive", client.FixedTimeStep())
	}
	if got, want := len(client.Planets()), len(server.Simulation().PlanetStates()); got != want {
		t.Errorf("handshake carried %d planets, want %d", got, want)
	}
	if server.ClientCount() != 1 {
		t.Errorf("server tracks %d clients, want 1", server.ClientCount())
	}
}

func TestHandshakeRejectsInvalidName(t *testing.T) {
	_, addr := startTestServer(t, 4)

	client := NewSimClient(event.NewBus(), logging.NewLoggerWithOutput(io.Discard))
	if err := client.Connect(addr, "bad\x00name"); err == nil {
		client.Disconnect()
		t.Fatal("expected the server to reject a name with control characters")
	}
}

func TestInitialKeyframeSeedsMirror(t *testing.T) {
	_, addr := startTestServer(t, 4)
	client := connectTestClient(t, addr, "pilot")

	select {
	case update := <-client.Updates():
		if !update.Keyframe {
			t.Errorf("first update keyframe = false, want true")
		}
		if _, ok := update.Bodies[client.BodyID()]; !ok {
			t.Errorf("keyframe missing the client's own body")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no keyframe received after handshake")
	}
}

func TestCommandReachesSimulation(t *testing.T) {
	_, addr := startTestServer(t, 4)
	client := connectTestClient(t, addr, "pilot")

	if err := client.SendCommand(engine.ThrustStart, nil); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	// The command lands at a tick boundary; watch the update stream for
	// the thrust flag.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case update := <-client.Updates():
			if body, ok := update.Bodies[client.BodyID()]; ok && body.IsThrusting {
				return
			}
		case <-deadline:
			t.Fatal("thrust command never reflected in the state stream")
		}
	}
}

func TestServerFullRejectsConnection(t *testing.T) {
	_, addr := startTestServer(t, 1)
	connectTestClient(t, addr, "first")

	client := NewSimClient(event.NewBus(), logging.NewLoggerWithOutput(io.Discard))
	err := client.Connect(addr, "second")
	if err == nil {
		client.Disconnect()
		t.Fatal("expected connect to fail against a full server")
	}
}

func TestDisconnectRemovesBody(t *testing.T) {
	server, addr := startTestServer(t, 4)
	client := connectTestClient(t, addr, "pilot")

	before := server.Simulation().BodyCount()
	if before != 1 {
		t.Fatalf("body count = %d after join, want 1", before)
	}

	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if server.Simulation().BodyCount() == 0 && server.ClientCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("after disconnect: %d bodies, %d clients, want 0 and 0",
		server.Simulation().BodyCount(), server.ClientCount())
}

func TestKeyframeCadence(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NetworkConfig.TicksPerKeyframe = 10
	bus := event.NewBus()
	logger := logging.NewLoggerWithOutput(io.Discard)
	sim := engine.NewSimulation(cfg, bus, logger)
	server := NewSimServer(sim, 4, nil, bus, logger)
	if err := server.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("server start: %v", err)
	}
	t.Cleanup(server.Stop)

	client := connectTestClient(t, server.Addr().String(), "pilot")

	// Thrust keeps the body changing so diffs flow between keyframes.
	client.SendCommand(engine.ThrustStart, nil)

	// The first update is the handshake seed, not on the cadence.
	select {
	case <-client.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("no handshake keyframe")
	}

	keyframes := 0
	deadline := time.After(5 * time.Second)
	for keyframes < 2 {
		select {
		case update := <-client.Updates():
			if update.Keyframe {
				keyframes++
				if update.Tick%10 != 0 {
					t.Errorf("keyframe at tick %d, want a multiple of 10", update.Tick)
				}
			}
		case <-deadline:
			t.Fatalf("saw %d periodic keyframes, want 2", keyframes)
		}
	}
}

// failingConn errors every write, standing in for a client whose socket
// has gone bad under the broadcast loop.
type failingConn struct {
	closed atomic.Bool
}

func (f *failingConn) Read(b []byte) (int, error)       { return 0, io.EOF }
func (f *failingConn) Write(b []byte) (int, error)      { return 0, errors.New("broken pipe") }
func (f *failingConn) Close() error                     { f.closed.Store(true); return nil }
func (f *failingConn) LocalAddr() net.Addr              { return &net.TCPAddr{} }
func (f *failingConn) RemoteAddr() net.Addr             { return &net.TCPAddr{} }
func (f *failingConn) SetDeadline(time.Time) error      { return nil }
func (f *failingConn) SetReadDeadline(time.Time) error  { return nil }
func (f *failingConn) SetWriteDeadline(time.Time) error { return nil }

func TestBroadcastClosesFailingClient(t *testing.T) {
	cfg := config.DefaultConfig()
	bus := event.NewBus()
	logger := logging.NewLoggerWithOutput(io.Discard)
	sim := engine.NewSimulation(cfg, bus, logger)
	server := NewSimServer(sim, 4, nil, bus, logger)

	conn := &failingConn{}
	server.clientsLock.Lock()
	server.clients[1] = &Client{
		ID:         1,
		Conn:       conn,
		PlayerName: "ghost",
		Connected:  true,
	}
	server.clientsLock.Unlock()

	server.broadcastFrame(StateUpdateMessage, []byte{0x01})

	if !conn.closed.Load() {
		t.Error("failing client connection not closed after broadcast")
	}
}
