// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"time"

	"github.com/nordicnode/swarm/config"
)

// Gate evaluates schedule, power, and manual-pause policy before the
// engine sends or applies a change (§4.5 "Gating").
type Gate struct {
	Schedule config.SyncSchedule
	Power    PowerStatus
	PausedAt *time.Time // nil when not paused
	PauseFor time.Duration // 0 means indefinite
}

// NewGate builds a Gate with no pause and a PowerStatus that never defers.
func NewGate(schedule config.SyncSchedule) *Gate {
	return &Gate{Schedule: schedule, Power: staticPower{}}
}

// Pause suspends outgoing traffic and inbound apply. duration 0 pauses
// indefinitely until Resume is called.
func (g *Gate) Pause(now time.Time, duration time.Duration) {
	g.PausedAt = &now
	g.PauseFor = duration
}

// Resume clears any manual pause.
func (g *Gate) Resume() {
	g.PausedAt = nil
	g.PauseFor = 0
}

// IsPaused reports whether a manual pause is currently in effect at now.
func (g *Gate) IsPaused(now time.Time) bool {
	if g.PausedAt == nil {
		return false
	}
	if g.PauseFor == 0 {
		return true
	}
	return now.Before(g.PausedAt.Add(g.PauseFor))
}

// AllowOutgoing reports whether a change of size bytes may be sent at now.
// Small files under SmallFrameBytes still flow on low battery; everything
// is suppressed while manually paused or outside the allowed schedule
// window.
func (g *Gate) AllowOutgoing(now time.Time, sizeBytes int64) bool {
	if g.IsPaused(now) {
		return false
	}
	if !g.inScheduleWindow(now) {
		return false
	}
	if g.Power != nil && g.Power.IsOnBattery() && g.Power.BatteryPercent() < LowBatteryPercent {
		return sizeBytes < SmallFrameBytes
	}
	return true
}

// AllowInboundApply reports whether a received change may be applied to
// disk right now; unlike AllowOutgoing this ignores power state (applying
// what already arrived over the wire costs no additional transfer).
func (g *Gate) AllowInboundApply(now time.Time) bool {
	if g.IsPaused(now) {
		return false
	}
	return g.inScheduleWindow(now)
}

func (g *Gate) inScheduleWindow(now time.Time) bool {
	if !g.Schedule.Enabled || len(g.Schedule.Windows) == 0 {
		return true
	}
	inAnyWindow := false
	for _, w := range g.Schedule.Windows {
		if windowContains(w, now) {
			inAnyWindow = true
			break
		}
	}
	switch g.Schedule.Mode {
	case config.BlockDuring:
		return !inAnyWindow
	default: // config.AllowDuring
		return inAnyWindow
	}
}

func windowContains(w timeWindow, now time.Time) bool {
	dayMatches := len(w.Days) == 0
	for _, d := range w.Days {
		if d == now.Weekday() {
			dayMatches = true
			break
		}
	}
	if !dayMatches {
		return false
	}
	minuteOfDay := now.Hour()*60 + now.Minute()
	if w.EndMinute <= w.StartMinute {
		// Spans midnight: [start,1440) U [0,end)
		return minuteOfDay >= w.StartMinute || minuteOfDay < w.EndMinute
	}
	return minuteOfDay >= w.StartMinute && minuteOfDay < w.EndMinute
}

// timeWindow aliases config.TimeWindow so windowContains reads naturally;
// the two types are structurally identical.
type timeWindow = config.TimeWindow
