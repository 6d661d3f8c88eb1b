package domain

import "time"

// BonusSettings carries a warehouse's loyalty bonus configuration. Exactly one of
// BonusFixed / BonusPercent is meaningful: a non-zero BonusFixed wins, otherwise
// BonusPercent applies.
type BonusSettings struct {
	WarehouseID      string
	Active           bool
	RequiredSubtotal int64
	BonusFixed       int64
	BonusPercent     int64
	HappyHoursOnly   bool
}

// UsesFixed reports whether the settings express the bonus as a fixed amount.
func (s BonusSettings) UsesFixed() bool {
	return s.BonusFixed > 0
}

// HappyHourWindow is a recurring weekly elevation of the bonus rate, expressed in
// the warehouse's local time. Start after End means the window wraps past midnight.
type HappyHourWindow struct {
	WarehouseID string
	Weekday     time.Weekday
	Start       ClockTime
	End         ClockTime
	Value       int64
	Active      bool
}

// Overnight reports whether the window wraps past midnight into the next day.
func (w HappyHourWindow) Overnight() bool {
	return w.Start.After(w.End)
}

// ForcedHappyHour is a one-off absolute override window. When current it takes
// precedence over every scheduled weekly window.
type ForcedHappyHour struct {
	WarehouseID string
	Start       time.Time
	End         time.Time
	Value       int64
}

// Contains reports whether the forced window covers the given local wall-clock time.
func (f ForcedHappyHour) Contains(now time.Time) bool {
	return !now.Before(f.Start) && now.Before(f.End)
}

// ClockTime is a timezone-free time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// After reports whether t is strictly later in the day than other.
func (t ClockTime) After(other ClockTime) bool {
	return t.minutes() > other.minutes()
}

// Before reports whether t is strictly earlier in the day than other.
func (t ClockTime) Before(other ClockTime) bool {
	return t.minutes() < other.minutes()
}

func (t ClockTime) minutes() int {
	return t.Hour*60 + t.Minute
}

// ClockTimeOf extracts the time of day from an instant already shifted into the
// relevant location.
func ClockTimeOf(instant time.Time) ClockTime {
	return ClockTime{Hour: instant.Hour(), Minute: instant.Minute()}
}

// OrderBonus is the resolved loyalty bonus for one order calculation.
type OrderBonus struct {
	// BonusFixed / BonusPercent mirror the chosen rate representation; exactly
	// one is set, matching the warehouse settings.
	BonusFixed   int64
	BonusPercent int64

	// AppliedDiscount is the distributed, cap-adjusted discount in minor units;
	// zero when the qualifying subtotal is below RequiredSubtotal.
	AppliedDiscount  int64
	RequiredSubtotal int64

	// Increased is true when a happy-hour value strictly exceeds the baseline,
	// routing composition toward happy-hour messaging.
	Increased bool

	Items []DistributedDiscountItem
}

// UsesPercent reports whether the bonus rate is a percentage.
func (b OrderBonus) UsesPercent() bool {
	return b.BonusPercent > 0 && b.BonusFixed == 0
}
