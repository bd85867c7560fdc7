package geo

import "github.com/puckstats/shotrecorder/pkg/core"

// ZoneMonitor tracks a puck entering and leaving the sphere around a goal.
// It is edge triggered: Update reports only the inside->outside transition.
type ZoneMonitor struct {
	Center core.Vec3
	Radius float64

	inside  bool
	reached bool
}

// NewZoneMonitor creates a monitor around center.
func NewZoneMonitor(center core.Vec3, radius float64) *ZoneMonitor {
	return &ZoneMonitor{Center: center, Radius: radius}
}

// Update feeds the current puck position and returns true if the puck has just left the zone.
func (z *ZoneMonitor) Update(pos core.Vec3) (exited bool) {
	inside := pos.Distance(z.Center) <= z.Radius
	if inside {
		z.reached = true
	}
	exited = z.inside && !inside
	z.inside = inside
	return exited
}

// Inside reports whether the last position fed was inside the zone.
func (z *ZoneMonitor) Inside() bool {
	return z.inside
}

// Reached reports whether the puck has been inside the zone since the last Reset.
func (z *ZoneMonitor) Reached() bool {
	return z.reached
}

// Reset forgets all history.
func (z *ZoneMonitor) Reset() {
	z.inside = false
	z.reached = false
}
