package account

import "reflect"

// Reconcile merges a newly arrived snapshot into the previous state and
// returns the state to hand to subscribers. prev may be nil on the first
// call. Rules, in order:
//
//  1. An empty incoming position list while the previous state holds
//     positions is treated as a degenerate push (upstream omits position
//     data on no-op ticks): previous positions are kept, present
//     aggregate fields are still applied.
//  2. If nothing differs from prev, prev itself is returned, so callers
//     can detect no-ops by pointer identity.
//  3. Optional fields absent on this tick fall back to their last known
//     value instead of resetting.
func Reconcile(prev *State, next Snapshot) *State {
	if prev == nil {
		s := next.state()
		return &s
	}

	merged := State{
		User:                       prev.User,
		AccountValue:               keepIfAbsent(next.AccountValue, prev.AccountValue),
		TotalMarginUsed:            keepIfAbsent(next.TotalMarginUsed, prev.TotalMarginUsed),
		TotalNtlPos:                keepIfAbsent(next.TotalNtlPos, prev.TotalNtlPos),
		TotalRawUsd:                keepIfAbsent(next.TotalRawUsd, prev.TotalRawUsd),
		Withdrawable:               keepIfAbsent(next.Withdrawable, prev.Withdrawable),
		CrossMaintenanceMarginUsed: keepIfAbsent(next.CrossMaintenanceMarginUsed, prev.CrossMaintenanceMarginUsed),
		Positions:                  next.Positions,
		Time:                       next.Time,
	}
	if next.User != "" {
		merged.User = next.User
	}
	if len(next.Positions) == 0 && len(prev.Positions) > 0 {
		merged.Positions = prev.Positions
	}

	if merged.equalTo(prev) {
		return prev
	}
	return &merged
}

func (s *State) equalTo(other *State) bool {
	return s.AccountValue == other.AccountValue &&
		s.TotalMarginUsed == other.TotalMarginUsed &&
		s.TotalNtlPos == other.TotalNtlPos &&
		s.TotalRawUsd == other.TotalRawUsd &&
		s.Withdrawable == other.Withdrawable &&
		s.CrossMaintenanceMarginUsed == other.CrossMaintenanceMarginUsed &&
		reflect.DeepEqual(s.Positions, other.Positions)
}

// keepIfAbsent is the merge policy for optional string fields: upstream
// intermittently omits them on ticks where they have not changed.
func keepIfAbsent(next, prev string) string {
	if next == "" {
		return prev
	}
	return next
}

func (s Snapshot) state() State {
	return State{
		User:                       s.User,
		AccountValue:               s.AccountValue,
		TotalMarginUsed:            s.TotalMarginUsed,
		TotalNtlPos:                s.TotalNtlPos,
		TotalRawUsd:                s.TotalRawUsd,
		Withdrawable:               s.Withdrawable,
		CrossMaintenanceMarginUsed: s.CrossMaintenanceMarginUsed,
		Positions:                  s.Positions,
		Time:                       s.Time,
	}
}
