package lattice

import (
	"time"

	"neurosentinel/internal/clock"
	"neurosentinel/internal/sentinel"
)

// DefaultSpeed is the auto-rotation rate in radians per second.
const DefaultSpeed = 0.35

// View ties the camera, renderer and the shared animation clock
// together. Frame is called once per render tick.
type View struct {
	clock    clock.Clock
	camera   *Camera
	renderer *Renderer

	start     time.Time
	lastFrame time.Time
}

// NewView returns a lattice view whose animations are timed by c.
func NewView(c clock.Clock) *View {
	now := c.Now()
	return &View{
		clock:     c,
		camera:    NewCamera(c, DefaultSpeed),
		renderer:  NewRenderer(),
		start:     now,
		lastFrame: now,
	}
}

// Camera exposes the rotation controller.
func (v *View) Camera() *Camera {
	return v.camera
}

// Observe forwards a state change to the camera.
func (v *View) Observe(state sentinel.AgentState) {
	v.camera.Observe(state)
}

// Frame advances the camera to now and draws the snapshot.
func (v *View) Frame(state sentinel.SystemState, width, height int) string {
	now := v.clock.Now()
	v.camera.Advance(now.Sub(v.lastFrame))
	v.lastFrame = now

	pulse := Pulse(state.AgentState, now.Sub(v.start))
	return v.renderer.Render(Build(state), v.camera.Angle(), pulse, width, height)
}

// Close cancels the camera's pending resume.
func (v *View) Close() {
	v.camera.Close()
}
