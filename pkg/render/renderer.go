// Package render defines the presentation boundary of the client. The
// mirror produces interpolated body transforms; renderers decide how they
// appear on screen.
package render

import (
	"context"

	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

// Renderer draws one frame of mirrored world state. Clear begins a frame,
// Present flushes it.
type Renderer interface {
	Clear()
	Present()
	RenderBody(body engine.MirrorBody)
	RenderPlanet(planet engine.PlanetState)
}

// NullRenderer discards all draw calls, logging them at debug level. It is
// the renderer for headless clients and tests.
type NullRenderer struct {
	logger *logging.Logger
}

// NewNullRenderer creates a NullRenderer with structured logging.
func NewNullRenderer() *NullRenderer {
	return &NullRenderer{
		logger: logging.NewLogger(),
	}
}

// Clear implements Renderer.
func (d *NullRenderer) Clear() {
	d.logger.Debug(context.Background(), "Clear called")
}

// Present implements Renderer.
func (d *NullRenderer) Present() {
	d.logger.Debug(context.Background(), "Present called")
}

// RenderBody implements Renderer.
func (d *NullRenderer) RenderBody(body engine.MirrorBody) {
	d.logger.Debug(context.Background(), "RenderBody called",
		"body_id", body.ID,
		"x", body.Rendered.Position.X,
		"y", body.Rendered.Position.Y,
		"sleeping", body.Sleeping,
	)
}

// RenderPlanet implements Renderer.
func (d *NullRenderer) RenderPlanet(planet engine.PlanetState) {
	d.logger.Debug(context.Background(), "RenderPlanet called",
		"planet_id", planet.ID,
		"planet_name", planet.Name,
		"radius", planet.Radius,
	)
}

// NullRendererInstance is a global instance of NullRenderer for convenience.
var NullRendererInstance Renderer = NewNullRenderer()
