package obstacle

import "time"

// WarningState debounces spoken warnings for one confirmed hazard span.
// RepeatCount resets only when Active turns on and never exceeds the cap.
type WarningState struct {
	Active      bool
	RepeatCount int
	LastWarning time.Time
}

// Step advances the state machine for one cycle and reports whether a warning
// should be spoken now.
func (w *WarningState) Step(confirmed bool, now time.Time, maxCount int, interval time.Duration) bool {
	if !confirmed {
		w.Active = false
		return false
	}
	if !w.Active {
		w.Active = true
		w.RepeatCount = 0
		w.LastWarning = time.Time{}
	}
	if w.RepeatCount >= maxCount {
		return false
	}
	if !w.LastWarning.IsZero() && now.Sub(w.LastWarning) < interval {
		return false
	}
	w.RepeatCount++
	w.LastWarning = now
	return true
}
