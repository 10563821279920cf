package video

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLimits is returned by Limits.Validate
	ErrInvalidLimits = errors.New("invalid limits")
	// ErrTooLarge is returned for videos above the size limit
	ErrTooLarge = errors.New("video exceeds maximum size limit")
	// ErrDurationOutOfRange is returned for videos outside the duration limits
	ErrDurationOutOfRange = errors.New("video duration is outside allowed range")
)

// Limits bound the videos the catalog accepts. Durations are in seconds, sizes in bytes.
type Limits struct {
	MaxDuration int64 `koanf:"max_duration"`
	MinDuration int64 `koanf:"min_duration"`
	MaxSize     int64 `koanf:"max_size"`
}

// DefaultLimits allows 4 to 300 second videos of at most 25 MiB
func DefaultLimits() Limits {
	return Limits{
		MaxDuration: 300,
		MinDuration: 4,
		MaxSize:     25 * 1024 * 1024,
	}
}

// Validate rejects non-positive limits and an empty duration range
func (l Limits) Validate() error {
	if l.MaxDuration <= 0 {
		return fmt.Errorf("%w: max duration must be positive, got %d", ErrInvalidLimits, l.MaxDuration)
	}
	if l.MinDuration <= 0 {
		return fmt.Errorf("%w: min duration must be positive, got %d", ErrInvalidLimits, l.MinDuration)
	}
	if l.MaxDuration <= l.MinDuration {
		return fmt.Errorf("%w: max duration %d must be greater than min duration %d", ErrInvalidLimits, l.MaxDuration, l.MinDuration)
	}
	if l.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidLimits, l.MaxSize)
	}
	return nil
}

// Check reports whether a video of the given size and duration is accepted
func (l Limits) Check(size, duration int64) error {
	if size > l.MaxSize {
		return fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, size, l.MaxSize)
	}
	if duration < l.MinDuration || duration > l.MaxDuration {
		return fmt.Errorf("%w: %ds not in [%d, %d]", ErrDurationOutOfRange, duration, l.MinDuration, l.MaxDuration)
	}
	return nil
}
