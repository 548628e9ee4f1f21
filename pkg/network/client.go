// pkg/network/client.go
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/entity"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/physics"
)

// Client-side event types.
const (
	ClientDisconnected    event.Type = "client_disconnected"
	ClientReconnected     event.Type = "client_reconnected"
	ClientReconnectFailed event.Type = "client_reconnect_failed"
	PlanetsUpdated        event.Type = "planets_updated"
)

// PlanetsEvent carries refreshed planet states received from the server.
type PlanetsEvent struct {
	event.BaseEvent
	Planets []engine.PlanetState
}

// SimClient connects an observer to the server. Received state updates are
// delivered on a buffered channel for the mirror; commands go out with a
// monotonic per-connection sequence number.
type SimClient struct {
	conn          net.Conn
	clientID      entity.ID
	bodyID        entity.ID
	serverAddress string
	playerName    string
	connected     bool

	fixedTimeStep float64
	planets       []engine.PlanetState
	updates       chan engine.StateUpdate
	seq           atomic.Uint64

	// controls mirrors the toggle commands sent so far; prediction
	// integrates the same inputs the authority will apply.
	controlsMu sync.Mutex
	controls   physics.Controls

	eventBus *event.Bus
	service  *NetworkService
	logger   *logging.Logger
	mu       sync.Mutex

	latency              time.Duration
	pingInterval         time.Duration
	reconnectDelay       time.Duration
	maxReconnectAttempts int

	ctx               context.Context
	cancel            context.CancelFunc
	connectionTimeout time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
}

// NewSimClient creates a client. Timeouts come from the environment
// configuration; connection attempts run through the circuit breaker so a
// dead server trips fast instead of hanging every caller.
func NewSimClient(eventBus *event.Bus, logger *logging.Logger) *SimClient {
	envConfig, err := config.LoadConfigFromEnv()
	if err != nil {
		envConfig = &config.EnvironmentConfig{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
	}

	return &SimClient{
		updates:              make(chan engine.StateUpdate, 16),
		eventBus:             eventBus,
		service:              NewNetworkService(envConfig),
		logger:               logger,
		pingInterval:         5 * time.Second,
		reconnectDelay:       3 * time.Second,
		maxReconnectAttempts: 5,
		connectionTimeout:    30 * time.Second,
		readTimeout:          envConfig.ReadTimeout,
		writeTimeout:         envConfig.WriteTimeout,
	}
}

// Connect dials the server and performs the handshake. The player name is
// retained for reconnects.
func (c *SimClient) Connect(address, playerName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.prepareConnection(address, playerName)

	if err := c.establishTCPConnection(address); err != nil {
		return err
	}
	if err := c.performHandshake(playerName); err != nil {
		return err
	}

	go c.messageLoop()
	go c.pingLoop()
	return nil
}

// prepareConnection closes any existing connection. Caller holds the lock.
func (c *SimClient) prepareConnection(address, playerName string) {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.serverAddress = address
	c.playerName = playerName

	// Each handshake spawns a fresh body with all toggles off.
	c.controlsMu.Lock()
	c.controls = physics.Controls{}
	c.controlsMu.Unlock()
}

// establishTCPConnection dials through the circuit breaker with the
// connection timeout.
func (c *SimClient) establishTCPConnection(address string) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.connectionTimeout)
	defer cancel()

	err := c.service.Execute(ctx, func() error {
		dialer := &net.Dialer{}
		conn, dialErr := dialer.DialContext(ctx, "tcp", address)
		if dialErr != nil {
			return dialErr
		}
		c.conn = conn
		return nil
	})
	if err != nil {
		return logging.WrapError(err, "failed to connect to server", "address", address)
	}
	return nil
}

// performHandshake sends the connect request and processes the response.
func (c *SimClient) performHandshake(playerName string) error {
	payload, err := marshalControl(connectRequestPayload{PlayerName: playerName})
	if err != nil {
		c.cleanupConnection()
		return err
	}
	if err := c.writeFrameLocked(c.ctx, ConnectRequest, payload); err != nil {
		c.cleanupConnection()
		return logging.WrapError(err, "failed to send connect request")
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.connectionTimeout)
	defer cancel()

	msgType, data, err := c.readFrameWithContext(ctx)
	if err != nil {
		c.cleanupConnection()
		return logging.WrapError(err, "failed to read connect response")
	}
	if msgType != ConnectResponse {
		c.cleanupConnection()
		return fmt.Errorf("unexpected response type: %d", msgType)
	}

	var resp connectResponsePayload
	if err := json.Unmarshal(data, &resp); err != nil {
		c.cleanupConnection()
		return logging.WrapError(err, "failed to parse connect response")
	}
	if !resp.Success {
		c.cleanupConnection()
		return fmt.Errorf("server rejected connection: %s", resp.Error)
	}

	c.clientID = entity.ID(resp.ClientID)
	c.bodyID = entity.ID(resp.BodyID)
	c.fixedTimeStep = resp.FixedTimeStep
	c.planets = resp.Planets
	c.connected = true
	return nil
}

// cleanupConnection closes the connection and cancels in-flight operations.
// Caller holds the lock.
func (c *SimClient) cleanupConnection() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Disconnect notifies the server and tears down the connection.
func (c *SimClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	c.writeFrameLocked(ctx, DisconnectNotification, nil)
	cancel()

	c.cleanupConnection()
	return nil
}

// Connected reports whether the client currently holds a live connection.
func (c *SimClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// BodyID returns the body assigned by the server at handshake.
func (c *SimClient) BodyID() entity.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bodyID
}

// FixedTimeStep returns the server's fixed step, needed to run local
// prediction with the same integrator cadence.
func (c *SimClient) FixedTimeStep() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fixedTimeStep
}

// Planets returns the planet layout received at handshake or in the latest
// planet update.
func (c *SimClient) Planets() []engine.PlanetState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.planets
}

// Latency returns the measured round-trip time.
func (c *SimClient) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

// Updates returns the channel carrying received state updates.
func (c *SimClient) Updates() <-chan engine.StateUpdate {
	return c.updates
}

// SendCommand transmits one input command with the next sequence number.
// The value pointer is only set for commands that carry one, such as
// set_angle.
func (c *SimClient) SendCommand(kind engine.CommandKind, value *float64) error {
	if !c.Connected() {
		return errors.New("not connected")
	}

	cmd := engine.Command{
		Seq:       c.seq.Add(1),
		Input:     kind,
		Value:     value,
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := marshalControl(cmd)
	if err != nil {
		return err
	}

	c.mu.Lock()
	err = c.writeFrameLocked(c.ctx, CommandMessage, payload)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.recordControl(kind)
	return nil
}

// recordControl folds a sent toggle command into the tracked control
// state.
func (c *SimClient) recordControl(kind engine.CommandKind) {
	c.controlsMu.Lock()
	defer c.controlsMu.Unlock()

	switch kind {
	case engine.ThrustStart:
		c.controls.Thrusting = true
	case engine.ThrustStop:
		c.controls.Thrusting = false
	case engine.TurnLeftStart:
		c.controls.TurningCCW = true
	case engine.TurnLeftStop:
		c.controls.TurningCCW = false
	case engine.TurnRightStart:
		c.controls.TurningCW = true
	case engine.TurnRightStop:
		c.controls.TurningCW = false
	}
}

// Controls returns the toggle state implied by the commands sent on this
// connection, for local prediction.
func (c *SimClient) Controls() physics.Controls {
	c.controlsMu.Lock()
	defer c.controlsMu.Unlock()
	return c.controls
}

// messageLoop decodes frames from the server until disconnect.
func (c *SimClient) messageLoop() {
	for c.Connected() {
		ctx, cancel := context.WithTimeout(c.ctx, c.readTimeout)
		msgType, data, err := c.readFrameWithContext(ctx)
		cancel()

		if err != nil {
			if c.Connected() && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				c.handleDisconnect(err)
			}
			return
		}

		switch msgType {
		case StateUpdateMessage:
			c.handleStateUpdate(data)

		case PlanetUpdate:
			c.handlePlanetUpdate(data)

		case PingResponse:
			c.handlePingResponse(data)

		default:
			// Unknown message types are skipped so protocol additions do
			// not break older clients.
		}
	}
}

// handleStateUpdate decodes and forwards one state update, dropping it if
// the consumer has fallen behind. A dropped diff self-heals at the next
// keyframe.
func (c *SimClient) handleStateUpdate(data []byte) {
	update, err := unmarshalStateUpdate(data)
	if err != nil {
		c.logger.Error(context.Background(), "error decoding state update", err)
		return
	}

	select {
	case c.updates <- update:
	default:
		c.logger.Debug(context.Background(), "dropping state update, consumer behind",
			"tick", update.Tick,
		)
	}
}

// handlePlanetUpdate refreshes the planet layout and notifies subscribers.
func (c *SimClient) handlePlanetUpdate(data []byte) {
	var payload planetUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Error(context.Background(), "error decoding planet update", err)
		return
	}

	c.mu.Lock()
	c.planets = payload.Planets
	c.mu.Unlock()

	c.eventBus.Publish(&PlanetsEvent{
		BaseEvent: event.BaseEvent{EventType: PlanetsUpdated, Source: c},
		Planets:   payload.Planets,
	})
}

// handlePingResponse computes round-trip latency from the echoed timestamp.
func (c *SimClient) handlePingResponse(data []byte) {
	var pingTime time.Time
	if err := json.Unmarshal(data, &pingTime); err != nil {
		return
	}

	c.mu.Lock()
	c.latency = time.Since(pingTime)
	c.mu.Unlock()
}

// pingLoop periodically measures latency.
func (c *SimClient) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for c.Connected() {
		<-ticker.C

		payload, err := marshalControl(time.Now())
		if err != nil {
			continue
		}
		c.mu.Lock()
		c.writeFrameLocked(c.ctx, PingRequest, payload)
		c.mu.Unlock()
	}
}

// handleDisconnect reacts to an unexpected connection loss.
func (c *SimClient) handleDisconnect(err error) {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if !wasConnected {
		return
	}

	c.logger.Warn(context.Background(), "connection lost", "error", err.Error())
	c.eventBus.Publish(&event.BaseEvent{EventType: ClientDisconnected, Source: c})

	go c.attemptReconnect()
}

// attemptReconnect retries the stored address and player name with a
// bounded number of attempts.
func (c *SimClient) attemptReconnect() {
	for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
		time.Sleep(c.reconnectDelay)

		if err := c.Connect(c.serverAddress, c.playerName); err == nil {
			c.eventBus.Publish(&event.BaseEvent{EventType: ClientReconnected, Source: c})
			return
		}

		c.logger.Warn(context.Background(), "reconnect attempt failed",
			"attempt", attempt,
			"max_attempts", c.maxReconnectAttempts,
		)
	}

	c.eventBus.Publish(&event.BaseEvent{EventType: ClientReconnectFailed, Source: c})
}

// frameResult carries a decoded frame out of the read goroutine.
type frameResult struct {
	msgType MessageType
	data    []byte
	err     error
}

// readFrameWithContext reads one frame, honoring the context deadline by
// forcing the connection closed on expiry.
func (c *SimClient) readFrameWithContext(ctx context.Context) (MessageType, []byte, error) {
	conn := c.conn
	if conn == nil {
		return 0, nil, errors.New("not connected")
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	defer conn.SetReadDeadline(time.Time{})

	resultChan := make(chan frameResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- frameResult{err: fmt.Errorf("panic during read: %v", r)}
			}
		}()
		msgType, data, err := readFrame(conn)
		resultChan <- frameResult{msgType: msgType, data: data, err: err}
	}()

	select {
	case result := <-resultChan:
		return result.msgType, result.data, result.err
	case <-ctx.Done():
		conn.Close()
		return 0, nil, ctx.Err()
	}
}

// writeFrameLocked writes one frame under the client lock, honoring the
// context deadline. Caller holds the lock.
func (c *SimClient) writeFrameLocked(ctx context.Context, msgType MessageType, data []byte) error {
	if c.conn == nil {
		return errors.New("not connected")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	defer c.conn.SetWriteDeadline(time.Time{})

	return writeFrame(c.conn, msgType, data)
}
