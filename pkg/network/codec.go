// Package network carries the simulation over TCP and WebSocket. Frames are
// a one-byte message type, a big-endian uint16 payload length, and the
// payload. Control payloads are JSON; state updates are msgpack, which keeps
// the per-tick broadcast compact at high tick rates.
package network

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/opd-ai/go-orbit/pkg/engine"
)

// MessageType defines the type of network message.
type MessageType byte

const (
	ConnectRequest MessageType = iota
	ConnectResponse
	DisconnectNotification
	StateUpdateMessage
	CommandMessage
	PlanetUpdate
	PingRequest
	PingResponse
)

// MaxPayloadSize is the largest frame payload the uint16 length can carry.
const MaxPayloadSize = 65535

// ErrPayloadTooLarge is returned when a payload exceeds the frame format's
// length field.
var ErrPayloadTooLarge = errors.New("payload exceeds frame size limit")

// connectRequestPayload is the client's half of the handshake.
type connectRequestPayload struct {
	PlayerName string `json:"playerName"`
}

// connectResponsePayload is the server's half of the handshake. On success
// it carries everything an observer needs to seed its mirror: the assigned
// body, the fixed step for prediction, and the planet layout.
type connectResponsePayload struct {
	Success       bool                 `json:"success"`
	Error         string               `json:"error,omitempty"`
	ClientID      uint64               `json:"clientID,omitempty"`
	BodyID        uint64               `json:"bodyID,omitempty"`
	FixedTimeStep float64              `json:"fixedTimeStep,omitempty"`
	Tick          uint64               `json:"tick,omitempty"`
	Planets       []engine.PlanetState `json:"planets,omitempty"`
}

// planetUpdatePayload announces a hot change to the massive bodies, such as
// a mass update, so observers can refresh their gravity fields.
type planetUpdatePayload struct {
	Planets []engine.PlanetState `json:"planets"`
}

// readFrame reads one framed message.
func readFrame(r io.Reader) (MessageType, []byte, error) {
	var msgType MessageType
	if err := binary.Read(r, binary.BigEndian, &msgType); err != nil {
		return 0, nil, err
	}

	var msgLen uint16
	if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
		return 0, nil, err
	}

	data := make([]byte, msgLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return msgType, data, nil
}

// writeFrame writes one framed message.
func writeFrame(w io.Writer, msgType MessageType, data []byte) error {
	if len(data) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	if err := binary.Write(w, binary.BigEndian, msgType); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// marshalControl serializes a JSON control payload.
func marshalControl(msg interface{}) ([]byte, error) {
	if msg == nil {
		return []byte{}, nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// marshalStateUpdate serializes a state update for the wire.
func marshalStateUpdate(update engine.StateUpdate) ([]byte, error) {
	data, err := msgpack.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state update: %w", err)
	}
	return data, nil
}

// unmarshalStateUpdate deserializes a wire state update.
func unmarshalStateUpdate(data []byte) (engine.StateUpdate, error) {
	var update engine.StateUpdate
	if err := msgpack.Unmarshal(data, &update); err != nil {
		return engine.StateUpdate{}, fmt.Errorf("failed to unmarshal state update: %w", err)
	}
	return update, nil
}
