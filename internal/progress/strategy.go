package progress

import (
	"math"

	"github.com/rivergarden/training-portal/internal/domain"
)

// Signal is the event a gate rule is evaluated against.
type Signal int

const (
	SignalOpened Signal = iota
	SignalProgress
	SignalEnded
	SignalAttendance
)

// Strategy bundles progress derivation and the unlock rule of one delivery type.
// It is picked once per course load.
type Strategy interface {
	Delivery() domain.DeliveryType
	// Derive converts a raw position into 0..100. It returns prev when the totals are
	// unknown or invalid.
	Derive(prev int, pos domain.Position) int
	Unlocks(sig Signal, progress int) bool
	// LockedHint is shown to the user when completion is requested too early.
	LockedHint() string
}

// seekGuard is implemented by strategies that police seeking while the gate is locked.
type seekGuard interface {
	AllowSeek(target, furthest, total float64) bool
}

type StrategyOptions struct {
	LiveRequiresAttendance bool
	// SeekTolerancePercent is the tail of a video that may be seeked into freely.
	SeekTolerancePercent float64
	// AllowRewind lets a locked video seek back to anything already watched.
	AllowRewind bool
}

func DefaultStrategyOptions() StrategyOptions {
	return StrategyOptions{LiveRequiresAttendance: true, SeekTolerancePercent: 1}
}

func NewStrategy(delivery domain.DeliveryType, opts StrategyOptions) Strategy {
	switch delivery {
	case domain.DeliveryVideo:
		tol := opts.SeekTolerancePercent
		if tol < 0 || tol > 100 || math.IsNaN(tol) {
			tol = 1
		}
		return videoStrategy{tolerance: tol, allowRewind: opts.AllowRewind}
	case domain.DeliveryLiveSession:
		return liveStrategy{requireAttendance: opts.LiveRequiresAttendance}
	default:
		return documentStrategy{}
	}
}

type documentStrategy struct{}

func (documentStrategy) Delivery() domain.DeliveryType { return domain.DeliveryDocument }

func (documentStrategy) Derive(prev int, pos domain.Position) int {
	pct, ok := percent(pos)
	if !ok {
		return prev
	}
	return clampPercent(math.Round(pct))
}

func (documentStrategy) Unlocks(sig Signal, progress int) bool {
	return (sig == SignalProgress || sig == SignalOpened) && progress >= 100
}

func (documentStrategy) LockedHint() string {
	return "read through to the last page before completing the course"
}

type videoStrategy struct {
	tolerance   float64
	allowRewind bool
}

func (videoStrategy) Delivery() domain.DeliveryType { return domain.DeliveryVideo }

func (videoStrategy) Derive(prev int, pos domain.Position) int {
	pct, ok := percent(pos)
	if !ok {
		return prev
	}
	// 1e-9 absorbs float noise such as 57*100/60 landing just under 95.
	return clampPercent(math.Floor(pct + 1e-9))
}

func (videoStrategy) Unlocks(sig Signal, _ int) bool {
	return sig == SignalEnded
}

func (videoStrategy) LockedHint() string {
	return "watch the video to the end before completing the course"
}

// AllowSeek only admits targets inside the final tolerance window, plus already watched
// positions when rewinding is enabled.
func (v videoStrategy) AllowSeek(target, furthest, total float64) bool {
	if math.IsNaN(target) {
		return false
	}
	if v.allowRewind && target <= furthest {
		return true
	}
	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return false
	}
	return target >= total*(1-v.tolerance/100)
}

type liveStrategy struct {
	requireAttendance bool
}

func (liveStrategy) Delivery() domain.DeliveryType { return domain.DeliveryLiveSession }

// Live sessions have no playback position; progress stays at the last server value.
func (liveStrategy) Derive(prev int, _ domain.Position) int { return prev }

func (l liveStrategy) Unlocks(sig Signal, _ int) bool {
	switch sig {
	case SignalAttendance:
		return true
	case SignalOpened:
		return !l.requireAttendance
	default:
		return false
	}
}

func (liveStrategy) LockedHint() string {
	return "confirm your attendance of the live session before completing the course"
}

func percent(pos domain.Position) (float64, bool) {
	if !(pos.Total > 0) || math.IsInf(pos.Total, 0) {
		return 0, false
	}
	if math.IsNaN(pos.Current) || math.IsInf(pos.Current, 0) {
		return 0, false
	}
	return pos.Current * 100 / pos.Total, true
}

func clampPercent(v float64) int {
	switch {
	case v <= 0:
		return 0
	case v >= 100:
		return 100
	default:
		return int(v)
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
