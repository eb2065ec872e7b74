package lattice

import (
	"math"
	"sync"
	"time"

	"neurosentinel/internal/clock"
	"neurosentinel/internal/sentinel"
)

// ResumeDelay is how long the camera waits in a calm state before it
// starts rotating again.
const ResumeDelay = 3 * time.Second

// Camera owns the auto-rotation flag and the current yaw.
type Camera struct {
	clock  clock.Clock
	resume *clock.Group
	speed  float64

	mu     sync.Mutex
	auto   bool
	paused bool
	angle  float64
	last   sentinel.AgentState
}

// NewCamera returns a camera that rotates at speed radians per second.
// Auto-rotation starts enabled.
func NewCamera(c clock.Clock, speed float64) *Camera {
	return &Camera{
		clock:  c,
		resume: clock.NewGroup(c),
		speed:  speed,
		auto:   true,
		last:   sentinel.StateIdle,
	}
}

// Observe feeds the current agent state. Only changes act: RAPID_PULSE
// and STROBE_RED stop rotation at once, IDLE and BREATHE arm the resume
// delay, restarting one that is still pending. SUCCESS leaves both the
// flag and a pending resume alone.
func (c *Camera) Observe(state sentinel.AgentState) {
	c.mu.Lock()
	if state == c.last {
		c.mu.Unlock()
		return
	}
	c.last = state
	c.mu.Unlock()

	switch state {
	case sentinel.StateRapidPulse, sentinel.StateStrobeRed:
		c.resume.Cancel()
		c.mu.Lock()
		c.auto = false
		c.mu.Unlock()
	case sentinel.StateIdle, sentinel.StateBreathe:
		c.resume.Cancel()
		c.resume.After(ResumeDelay, func() {
			c.mu.Lock()
			c.auto = true
			c.mu.Unlock()
		})
	}
}

// AutoRotate reports whether the state-driven rotation flag is on.
func (c *Camera) AutoRotate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auto
}

// TogglePause flips the manual pause and returns the new value.
func (c *Camera) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = !c.paused
	return c.paused
}

// Paused reports the manual pause.
func (c *Camera) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Rotating reports whether Advance moves the camera.
func (c *Camera) Rotating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auto && !c.paused
}

// Advance moves the yaw by dt worth of rotation when rotating.
func (c *Camera) Advance(dt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.auto || c.paused || dt <= 0 {
		return
	}
	c.angle = math.Mod(c.angle+c.speed*dt.Seconds(), 2*math.Pi)
}

// Angle returns the current yaw in radians.
func (c *Camera) Angle() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.angle
}

// ResumePending reports whether a resume is scheduled.
func (c *Camera) ResumePending() bool {
	return c.resume.Pending() > 0
}

// Close drops a pending resume.
func (c *Camera) Close() {
	c.resume.Cancel()
}
