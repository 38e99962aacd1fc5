package cache

import (
	"fmt"
	"strings"
	"time"
)

// Default durations of the TTL presets.
const (
	DefaultShortTTL  = 60 * time.Second
	DefaultMediumTTL = 5 * time.Minute
	DefaultLongTTL   = 1 * time.Hour
)

// Lifetime selects how long a written entry stays valid.
// It is implemented by Policy (a named preset) and Fixed (an explicit duration).
type Lifetime interface {
	resolve(table PolicyTable) time.Duration
}

// Policy is a named TTL preset. Call sites pick a preset by intent
// ("this list changes rarely" -> PolicyLong) instead of hardcoding durations.
type Policy uint8

const (
	// PolicyShort is for data that changes within minutes (promotions).
	PolicyShort Policy = iota + 1

	// PolicyMedium is for listings refreshed a few times per hour.
	PolicyMedium

	// PolicyLong is for data that rarely changes.
	PolicyLong
)

// String returns the preset name.
func (p Policy) String() string {
	switch p {
	case PolicyShort:
		return "short"
	case PolicyMedium:
		return "medium"
	case PolicyLong:
		return "long"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

func (p Policy) resolve(table PolicyTable) time.Duration {
	return table.Duration(p)
}

// ParsePolicy converts a preset name (case-insensitive) to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "short":
		return PolicyShort, nil
	case "medium":
		return PolicyMedium, nil
	case "long":
		return PolicyLong, nil
	default:
		return 0, fmt.Errorf("unknown ttl policy %q", name)
	}
}

// Fixed is an explicit TTL override.
type Fixed time.Duration

func (f Fixed) resolve(PolicyTable) time.Duration {
	return time.Duration(f)
}

// PolicyTable maps presets to durations. One table is owned by each Store,
// so a change here updates every consumer of a preset at once.
type PolicyTable struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// DefaultPolicyTable returns the standard presets (60s / 5min / 1h).
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		Short:  DefaultShortTTL,
		Medium: DefaultMediumTTL,
		Long:   DefaultLongTTL,
	}
}

// Duration returns the duration of preset p. Unknown presets resolve to 0,
// which the store treats as "do not cache".
func (t PolicyTable) Duration(p Policy) time.Duration {
	switch p {
	case PolicyShort:
		return t.Short
	case PolicyMedium:
		return t.Medium
	case PolicyLong:
		return t.Long
	default:
		return 0
	}
}

// Validate checks that all presets are positive and ordered short <= medium <= long.
func (t PolicyTable) Validate() error {
	if t.Short <= 0 || t.Medium <= 0 || t.Long <= 0 {
		return fmt.Errorf("ttl presets must be positive (short=%v medium=%v long=%v)", t.Short, t.Medium, t.Long)
	}
	if t.Short > t.Medium || t.Medium > t.Long {
		return fmt.Errorf("ttl presets must be ordered short <= medium <= long (short=%v medium=%v long=%v)", t.Short, t.Medium, t.Long)
	}
	return nil
}
