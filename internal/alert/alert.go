// Package alert raises occupancy alerts for counted zones. Thresholds come
// from the zone settings store; the evaluator keeps only the per-zone
// cooldown state in memory.
package alert

import (
	"sync"
	"time"

	"github.com/footfall-data/footfall.report/internal/monitoring"
	"github.com/footfall-data/footfall.report/internal/store"
)

// Level of an occupancy alert.
type Level string

const (
	// LevelWarning fires when occupancy reaches the warning fraction of
	// capacity.
	LevelWarning Level = "warning"
	// LevelCritical fires when occupancy reaches the critical fraction.
	LevelCritical Level = "critical"
)

// Alert is one raised occupancy condition.
type Alert struct {
	Zone      string    `json:"zone"`
	Level     Level     `json:"level"`
	Occupancy int       `json:"occupancy"`
	Capacity  int       `json:"capacity"`
	At        time.Time `json:"at"`
}

// Evaluator tracks per-zone cooldowns so a zone hovering over a threshold
// raises at most one alert per cooldown window. A rise from warning to
// critical bypasses the cooldown.
type Evaluator struct {
	now func() time.Time

	mu   sync.Mutex
	last map[string]lastAlert

	recent []Alert
}

type lastAlert struct {
	level Level
	at    time.Time
}

// recentAlertCap bounds the in-memory alert log served to the API.
const recentAlertCap = 100

// NewEvaluator builds an evaluator using the wall clock.
func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now, last: make(map[string]lastAlert)}
}

// NewEvaluatorAt builds an evaluator with an injected clock.
func NewEvaluatorAt(now func() time.Time) *Evaluator {
	return &Evaluator{now: now, last: make(map[string]lastAlert)}
}

// Evaluate checks a zone's occupancy against its thresholds. It returns a
// non-nil alert when a threshold is active and the cooldown allows raising
// it. Occupancy below the warning threshold clears the cooldown so the next
// excursion alerts immediately.
func (e *Evaluator) Evaluate(settings *store.ZoneSettings, occupancy int) *Alert {
	level := levelFor(settings, occupancy)

	e.mu.Lock()
	defer e.mu.Unlock()

	if level == "" {
		delete(e.last, settings.Zone)
		return nil
	}

	now := e.now()
	prev, ok := e.last[settings.Zone]
	if ok {
		cooldown := time.Duration(settings.AlertCooldownSeconds) * time.Second
		escalated := prev.level == LevelWarning && level == LevelCritical
		if !escalated && now.Sub(prev.at) < cooldown {
			return nil
		}
	}

	e.last[settings.Zone] = lastAlert{level: level, at: now}
	a := Alert{
		Zone:      settings.Zone,
		Level:     level,
		Occupancy: occupancy,
		Capacity:  settings.Capacity,
		At:        now,
	}
	e.recent = append(e.recent, a)
	if n := len(e.recent); n > recentAlertCap {
		e.recent = append(e.recent[:0], e.recent[n-recentAlertCap:]...)
	}
	monitoring.Logf("zone %s %s: occupancy %d of %d", a.Zone, a.Level, a.Occupancy, a.Capacity)
	return &a
}

// Recent returns the raised alerts, oldest first.
func (e *Evaluator) Recent() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, len(e.recent))
	copy(out, e.recent)
	return out
}

func levelFor(settings *store.ZoneSettings, occupancy int) Level {
	capacity := float64(settings.Capacity)
	occ := float64(occupancy)
	switch {
	case occ >= settings.CriticalFraction*capacity:
		return LevelCritical
	case occ >= settings.WarningFraction*capacity:
		return LevelWarning
	default:
		return ""
	}
}
