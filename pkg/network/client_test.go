package network

import (
	"testing"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/physics"
)

func TestSendCommandTracksControls(t *testing.T) {
	_, addr := startTestServer(t, 4)
	client := connectTestClient(t, addr, "pilot")

	if got := client.Controls(); got != (physics.Controls{}) {
		t.Fatalf("fresh connection controls = %+v, want zero", got)
	}

	steps := []struct {
		kind engine.CommandKind
		want physics.Controls
	}{
		{engine.ThrustStart, physics.Controls{Thrusting: true}},
		{engine.TurnLeftStart, physics.Controls{Thrusting: true, TurningCCW: true}},
		{engine.TurnRightStart, physics.Controls{Thrusting: true, TurningCCW: true, TurningCW: true}},
		{engine.TurnLeftStop, physics.Controls{Thrusting: true, TurningCW: true}},
		{engine.TurnRightStop, physics.Controls{Thrusting: true}},
		{engine.ThrustStop, physics.Controls{}},
	}

	for _, step := range steps {
		if err := client.SendCommand(step.kind, nil); err != nil {
			t.Fatalf("SendCommand(%s): %v", step.kind, err)
		}
		if got := client.Controls(); got != step.want {
			t.Errorf("after %s: controls = %+v, want %+v", step.kind, got, step.want)
		}
	}
}

func TestSendCommandSetAngleLeavesToggles(t *testing.T) {
	_, addr := startTestServer(t, 4)
	client := connectTestClient(t, addr, "pilot")

	if err := client.SendCommand(engine.ThrustStart, nil); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	angle := 1.5
	if err := client.SendCommand(engine.SetAngle, &angle); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	want := physics.Controls{Thrusting: true}
	if got := client.Controls(); got != want {
		t.Errorf("controls = %+v, want %+v", got, want)
	}
}

func TestFailedSendDoesNotRecordControls(t *testing.T) {
	_, addr := startTestServer(t, 4)
	client := connectTestClient(t, addr, "pilot")

	if err := client.SendCommand(engine.ThrustStart, nil); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	client.Disconnect()
	if err := client.SendCommand(engine.ThrustStop, nil); err == nil {
		t.Fatal("SendCommand after disconnect: expected error, got nil")
	}

	want := physics.Controls{Thrusting: true}
	if got := client.Controls(); got != want {
		t.Errorf("controls after failed send = %+v, want %+v", got, want)
	}
}

func TestReconnectResetsControls(t *testing.T) {
	_, addr := startTestServer(t, 4)
	client := connectTestClient(t, addr, "pilot")

	if err := client.SendCommand(engine.ThrustStart, nil); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	// A new handshake spawns a fresh body, so the tracked toggles reset.
	client.mu.Lock()
	client.prepareConnection(addr, "pilot")
	client.mu.Unlock()

	if got := client.Controls(); got != (physics.Controls{}) {
		t.Errorf("controls after reconnect preparation = %+v, want zero", got)
	}
}
