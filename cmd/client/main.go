// cmd/client/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/entity"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/network"
	"github.com/opd-ai/go-orbit/pkg/physics"
	"github.com/opd-ai/go-orbit/pkg/render"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	serverAddr := flag.String("server", "", "Server address (overrides config)")
	playerName := flag.String("name", "Pilot", "Player name")
	predict := flag.Bool("predict", false, "Predict own craft locally between updates")
	width := flag.Int("width", 80, "Terminal view width in cells")
	height := flag.Int("height", 24, "Terminal view height in cells")
	scale := flag.Float64("scale", 25, "World units per terminal cell")
	flag.Parse()

	var simConfig *config.SimConfig

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		log.Printf("Configuration file not found, using default configuration")
		simConfig = config.DefaultConfig()
	} else {
		simConfig, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}

	if *serverAddr == "" {
		*serverAddr = fmt.Sprintf("%s:%d",
			simConfig.NetworkConfig.ServerAddress,
			simConfig.NetworkConfig.ServerPort,
		)
	}

	eventBus := event.NewBus()
	logger := logging.NewLogger()
	client := network.NewSimClient(eventBus, logger)

	log.Printf("Connecting to server at %s", *serverAddr)
	if err := client.Connect(*serverAddr, *playerName); err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	log.Printf("Connected, flying body %d", client.BodyID())

	eventBus.Subscribe(network.ClientDisconnected, func(e event.Event) {
		log.Printf("Disconnected from server")
	})
	eventBus.Subscribe(network.ClientReconnected, func(e event.Event) {
		log.Printf("Reconnected to server")
	})
	eventBus.Subscribe(network.ClientReconnectFailed, func(e event.Event) {
		log.Printf("Failed to reconnect to server")
		os.Exit(1)
	})

	mirror := engine.NewMirror(engine.DefaultBlendFactor, logger)
	ownID := client.BodyID()
	if *predict {
		mirror.Track(ownID, engine.PredictCorrect)
	}

	// Prediction reuses the server's physics constants so local integration
	// matches the authority step for step.
	pc := simConfig.PhysicsConfig
	gravity := physics.NewGravityField(pc.Gravity, pc.MinGravityDistance)
	atmosphere := physics.NewAtmosphereModel(pc.DragCoefficient, pc.AngularDragCoeff)
	for _, p := range client.Planets() {
		center := physics.Vector2D{X: p.X, Y: p.Y}
		gravity.Register(uint64(p.ID), center, p.Mass)
		if p.AtmosphereHeight > 0 {
			atmosphere.Register(uint64(p.ID), center, p.Radius, p.AtmosphereHeight, p.SurfaceDensity)
		}
	}
	params := physics.MotionParams{
		ThrustAccel: pc.ThrustAccel,
		TurnRate:    pc.TurnRate,
		MaxSpeed:    pc.MaxSpeed,
	}

	renderer := render.NewTerminalRenderer(*width, *height, *scale)

	done := make(chan struct{})
	// Prediction advances on its own fixed-step scheduler so simulated
	// time tracks wall-clock regardless of the frame interval.
	var predictSched *engine.FixedStepScheduler
	if *predict {
		predictSched = engine.NewFixedStepScheduler(client.FixedTimeStep(), logger, eventBus)
	}

	go runFrames(client, mirror, renderer, ownID, predictSched, gravity, atmosphere, params, done)
	go runDemoInput(client, done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	close(done)
	log.Println("Disconnecting from server...")
	client.Disconnect()
}

// runFrames is the render loop: drain pending state updates into the
// mirror, blend or predict one frame, and draw it.
func runFrames(
	client *network.SimClient,
	mirror *engine.Mirror,
	renderer *render.TerminalRenderer,
	ownID entity.ID,
	predictSched *engine.FixedStepScheduler,
	gravity *physics.GravityField,
	atmosphere *physics.AtmosphereModel,
	params physics.MotionParams,
	done chan struct{},
) {
	frame := time.NewTicker(33 * time.Millisecond)
	defer frame.Stop()

	for {
		select {
		case <-done:
			return
		case <-frame.C:
		}

		for {
			select {
			case update := <-client.Updates():
				mirror.ApplyUpdate(update)
				continue
			default:
			}
			break
		}

		mirror.FrameBlend()
		if predictSched != nil {
			predictSched.Advance(time.Now())
			predictSched.Drain(func(dt float64) {
				mirror.PredictLocal(ownID, client.Controls(), gravity, atmosphere, params, dt)
			})
		}

		renderer.Clear()
		for _, p := range client.Planets() {
			renderer.RenderPlanet(p)
		}
		if own, ok := mirror.Body(ownID); ok {
			renderer.SetCenter(own.Rendered.Position)
		}
		for _, body := range mirror.Bodies() {
			renderer.RenderBody(body)
		}
		renderer.Present()
	}
}

// runDemoInput sends a canned flight pattern until real input handling
// lands: thrust pulses with alternating turns.
func runDemoInput(client *network.SimClient, done chan struct{}) {
	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()

	phase := 0
	for {
		select {
		case <-done:
			return
		case <-tick.C:
		}

		var err error
		switch phase % 4 {
		case 0:
			err = client.SendCommand(engine.ThrustStart, nil)
		case 1:
			err = client.SendCommand(engine.TurnLeftStart, nil)
		case 2:
			err = client.SendCommand(engine.TurnLeftStop, nil)
		case 3:
			err = client.SendCommand(engine.ThrustStop, nil)
		}
		if err != nil {
			log.Printf("Failed to send command: %v", err)
		}
		phase++
	}
}
