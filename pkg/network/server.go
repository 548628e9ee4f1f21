// pkg/network/server.go
package network

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/entity"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/validation"
)

// SimServer owns the authoritative simulation and its TCP clients. One
// goroutine drives the fixed-step loop and broadcasts diffs; each client
// gets a reader goroutine feeding the input sequencer.
type SimServer struct {
	listener net.Listener
	sim      *engine.Simulation
	sched    *engine.FixedStepScheduler
	encoder  *engine.DiffEncoder

	clients     map[entity.ID]*Client
	clientsLock sync.RWMutex

	running          bool
	runningLock      sync.RWMutex
	done             chan struct{}
	maxClients       int
	ticksPerKeyframe uint64

	validator *validation.MessageValidator
	gateway   *ObserverGateway
	events    *event.Bus
	logger    *logging.Logger
}

// Client represents a connected player.
type Client struct {
	ID         entity.ID
	Conn       net.Conn
	BodyID     entity.ID
	PlayerName string
	Connected  bool
	LastInput  time.Time

	writeLock sync.Mutex
}

// NewSimServer creates a server around a simulation. The gateway may be nil
// when no WebSocket observers are wanted.
func NewSimServer(sim *engine.Simulation, maxClients int, gateway *ObserverGateway, events *event.Bus, logger *logging.Logger) *SimServer {
	nc := sim.Config.NetworkConfig
	return &SimServer{
		sim:              sim,
		sched:            engine.NewFixedStepScheduler(sim.Config.PhysicsConfig.FixedTimeStep, logger, events),
		encoder:          engine.NewDiffEncoder(),
		clients:          make(map[entity.ID]*Client),
		done:             make(chan struct{}),
		maxClients:       maxClients,
		ticksPerKeyframe: uint64(nc.TicksPerKeyframe),
		validator:        validation.NewMessageValidator(),
		gateway:          gateway,
		events:           events,
		logger:           logger,
	}
}

// Start begins listening and runs the simulation loop.
func (s *SimServer) Start(address string) error {
	var err error
	s.listener, err = net.Listen("tcp", address)
	if err != nil {
		return logging.WrapError(err, "failed to start server")
	}

	s.setRunning(true)
	s.sim.Start()

	go s.acceptConnections()
	go s.simLoop()

	s.logger.Info(context.Background(), "server started", "address", address)
	return nil
}

// Addr returns the listener address, useful when listening on port 0.
func (s *SimServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop halts the simulation loop and closes every connection.
func (s *SimServer) Stop() {
	if !s.Running() {
		return
	}
	s.setRunning(false)
	close(s.done)

	s.clientsLock.Lock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.clientsLock.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}

	s.sim.Stop()
	s.validator.Close()
	s.logger.Info(context.Background(), "server stopped")
}

// Running reports whether the server is accepting work.
func (s *SimServer) Running() bool {
	s.runningLock.RLock()
	defer s.runningLock.RUnlock()
	return s.running
}

func (s *SimServer) setRunning(v bool) {
	s.runningLock.Lock()
	s.running = v
	s.runningLock.Unlock()
}

// ClientCount returns the number of connected clients.
func (s *SimServer) ClientCount() int {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return len(s.clients)
}

// Simulation exposes the underlying simulation for health checks.
func (s *SimServer) Simulation() *engine.Simulation {
	return s.sim
}

// StepsPerSecond reports the measured simulation step rate.
func (s *SimServer) StepsPerSecond() float64 {
	return s.sched.StepsPerSecond()
}

// acceptConnections accepts new client connections until the server stops.
func (s *SimServer) acceptConnections() {
	for s.Running() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.Running() {
				s.logger.Error(context.Background(), "error accepting connection", err)
			}
			continue
		}

		s.clientsLock.RLock()
		clientCount := len(s.clients)
		s.clientsLock.RUnlock()

		if clientCount >= s.maxClients {
			s.logger.Warn(context.Background(), "rejecting connection, server full",
				"max_clients", s.maxClients,
			)
			conn.Close()
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection performs the handshake and enters the client read loop.
func (s *SimServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	ctx := context.Background()

	msgType, data, err := readFrame(conn)
	if err != nil {
		s.logger.Error(ctx, "error reading connect request", err)
		return
	}
	if msgType != ConnectRequest {
		s.logger.Warn(ctx, "expected connect request", "message_type", int(msgType))
		return
	}

	var connectReq connectRequestPayload
	if err := json.Unmarshal(data, &connectReq); err != nil {
		s.logger.Error(ctx, "error parsing connect request", err)
		return
	}

	playerName, err := validation.ValidatePlayerName(connectReq.PlayerName)
	if err != nil {
		s.rejectConnection(conn, err)
		return
	}

	body := s.sim.SpawnBody()
	client := &Client{
		ID:         entity.GenerateID(),
		Conn:       conn,
		BodyID:     body.ID,
		PlayerName: playerName,
		Connected:  true,
		LastInput:  time.Now(),
	}

	s.clientsLock.Lock()
	s.clients[client.ID] = client
	s.clientsLock.Unlock()

	s.events.Publish(event.NewPlayerEvent(event.PlayerJoined, s, playerName, uint64(client.BodyID)))
	s.logger.Info(ctx, "client connected",
		"client_id", uint64(client.ID),
		"body_id", uint64(client.BodyID),
		"player", playerName,
	)

	if err := s.completeHandshake(client); err != nil {
		s.logger.Error(ctx, "handshake failed", err, "client_id", uint64(client.ID))
		s.removeClient(client)
		return
	}

	s.handleClientMessages(client)
}

// rejectConnection sends a failure handshake response.
func (s *SimServer) rejectConnection(conn net.Conn, cause error) {
	payload, err := marshalControl(connectResponsePayload{Success: false, Error: cause.Error()})
	if err != nil {
		return
	}
	writeFrame(conn, ConnectResponse, payload)
}

// completeHandshake sends the success response and seeds the new client
// with a full keyframe, so its mirror starts from the authoritative state
// instead of accumulating diffs from an empty world.
func (s *SimServer) completeHandshake(client *Client) error {
	resp := connectResponsePayload{
		Success:       true,
		ClientID:      uint64(client.ID),
		BodyID:        uint64(client.BodyID),
		FixedTimeStep: s.sched.FixedStep(),
		Tick:          s.sim.Tick(),
		Planets:       s.sim.PlanetStates(),
	}
	payload, err := marshalControl(resp)
	if err != nil {
		return err
	}
	if err := s.sendToClient(client, ConnectResponse, payload); err != nil {
		return err
	}

	snap := s.sim.Snapshot()
	seed := engine.StateUpdate{Tick: snap.Tick, Keyframe: true, Bodies: snap.Bodies}
	data, err := marshalStateUpdate(seed)
	if err != nil {
		return err
	}
	return s.sendToClient(client, StateUpdateMessage, data)
}

// handleClientMessages processes frames from one client until disconnect.
func (s *SimServer) handleClientMessages(client *Client) {
	ctx := context.Background()

	for client.Connected && s.Running() {
		msgType, data, err := readFrame(client.Conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && s.Running() {
				s.logger.Error(ctx, "error reading client message", err,
					"client_id", uint64(client.ID),
				)
			}
			break
		}

		switch msgType {
		case CommandMessage:
			s.handleCommand(client, data)

		case PingRequest:
			s.sendToClient(client, PingResponse, data)

		case DisconnectNotification:
			s.logger.Info(ctx, "client disconnecting", "client_id", uint64(client.ID))
			client.Connected = false

		default:
			s.logger.Warn(ctx, "unknown message type",
				"message_type", int(msgType),
				"client_id", uint64(client.ID),
			)
		}
	}

	s.removeClient(client)
}

// handleCommand validates and enqueues one player command. The command does
// not mutate the body here; it lands at the body's next fixed step.
func (s *SimServer) handleCommand(client *Client, data []byte) {
	ctx := context.Background()

	if err := s.validator.ValidateMessage(data, strconv.FormatUint(uint64(client.ID), 10)); err != nil {
		s.logger.Warn(ctx, "rejecting command", "client_id", uint64(client.ID), "reason", err.Error())
		return
	}

	var cmd engine.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.logger.Error(ctx, "error parsing command", err, "client_id", uint64(client.ID))
		return
	}
	if err := validation.ValidateCommand(cmd); err != nil {
		s.logger.Warn(ctx, "rejecting command", "client_id", uint64(client.ID), "reason", err.Error())
		return
	}

	client.LastInput = time.Now()
	s.sim.EnqueueCommand(client.BodyID, cmd)
}

// removeClient tears down a client and its body.
func (s *SimServer) removeClient(client *Client) {
	s.clientsLock.Lock()
	_, present := s.clients[client.ID]
	delete(s.clients, client.ID)
	s.clientsLock.Unlock()

	if !present {
		return
	}

	client.Conn.Close()
	s.sim.RemoveBody(client.BodyID)
	s.events.Publish(event.NewPlayerEvent(event.PlayerLeft, s, client.PlayerName, uint64(client.BodyID)))
	s.logger.Info(context.Background(), "client removed", "client_id", uint64(client.ID))
}

// simLoop drives the fixed-step scheduler off a wall-clock ticker and
// broadcasts the resulting state changes.
func (s *SimServer) simLoop() {
	interval := time.Duration(float64(time.Second) * s.sched.FixedStep())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.sched.Advance(now)
			if steps := s.sched.Drain(s.sim.Step); steps > 0 {
				s.broadcastState()
			}
		}
	}
}

// broadcastState sends a diff, or a keyframe on the keyframe cadence, to
// every client and the observer gateway. Empty diffs are suppressed;
// keyframes always go out so silent worlds still confirm liveness.
func (s *SimServer) broadcastState() {
	snap := s.sim.Snapshot()

	var update engine.StateUpdate
	if s.ticksPerKeyframe > 0 && snap.Tick%s.ticksPerKeyframe == 0 {
		update = s.encoder.Keyframe(snap)
	} else {
		update = s.encoder.Encode(snap)
		if update.Empty() {
			return
		}
	}

	data, err := marshalStateUpdate(update)
	if err != nil {
		s.logger.Error(context.Background(), "error encoding state update", err)
		return
	}

	s.broadcastFrame(StateUpdateMessage, data)

	if s.gateway != nil {
		s.gateway.Broadcast(update)
	}
}

// broadcastFrame writes one frame to every connected client. Clients whose
// socket fails are logged and their connection closed, which wakes their
// reader goroutine to remove them.
func (s *SimServer) broadcastFrame(msgType MessageType, data []byte) {
	var failed []*Client

	s.clientsLock.RLock()
	for _, client := range s.clients {
		if !client.Connected {
			continue
		}
		if err := s.sendToClient(client, msgType, data); err != nil {
			s.logger.Warn(context.Background(), "broadcast write failed, dropping client",
				"client_id", uint64(client.ID),
				"player_name", client.PlayerName,
				"error", err.Error(),
			)
			failed = append(failed, client)
		}
	}
	s.clientsLock.RUnlock()

	for _, client := range failed {
		client.Conn.Close()
	}
}

// BroadcastPlanetUpdate pushes the current planet states to all clients,
// used after hot mass changes.
func (s *SimServer) BroadcastPlanetUpdate() {
	payload, err := marshalControl(planetUpdatePayload{Planets: s.sim.PlanetStates()})
	if err != nil {
		s.logger.Error(context.Background(), "error encoding planet update", err)
		return
	}

	s.broadcastFrame(PlanetUpdate, payload)
}

// sendToClient writes one frame, serialized per client so the simulation
// loop and the client's reader never interleave partial frames.
func (s *SimServer) sendToClient(client *Client, msgType MessageType, data []byte) error {
	client.writeLock.Lock()
	defer client.writeLock.Unlock()
	return writeFrame(client.Conn, msgType, data)
}
