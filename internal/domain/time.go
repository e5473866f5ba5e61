package domain

import (
	"fmt"
	"time"
)

// Timestamp is a UTC Unix epoch second.
type Timestamp int64

// Time converts the timestamp to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Floor rounds the timestamp down to a multiple of dt seconds.
func (t Timestamp) Floor(dt int64) Timestamp {
	v := int64(t)
	f := v - mod(v, dt)
	return Timestamp(f)
}

// Ceil rounds the timestamp up to a multiple of dt seconds.
func (t Timestamp) Ceil(dt int64) Timestamp {
	v := int64(t)
	if m := mod(v, dt); m != 0 {
		return Timestamp(v - m + dt)
	}
	return t
}

// mod is the Euclidean remainder, non-negative for negative v.
func mod(v, dt int64) int64 {
	m := v % dt
	if m < 0 {
		m += dt
	}
	return m
}

// TimeRange is a half-open aligned range [Start, End) with step Dt seconds.
type TimeRange struct {
	Start Timestamp
	End   Timestamp
	Dt    int64
}

// NewTimeRange validates alignment and ordering.
func NewTimeRange(start, end Timestamp, dt int64) (TimeRange, error) {
	if dt <= 0 {
		return TimeRange{}, fmt.Errorf("time range step must be positive, got %d", dt)
	}
	if mod(int64(start), dt) != 0 || mod(int64(end), dt) != 0 {
		return TimeRange{}, fmt.Errorf("time range [%d,%d) not aligned to dt=%d", start, end, dt)
	}
	if end < start {
		return TimeRange{}, fmt.Errorf("time range end %d before start %d", end, start)
	}
	return TimeRange{Start: start, End: end, Dt: dt}, nil
}

// Count returns the number of steps in the range.
func (r TimeRange) Count() int {
	return int((int64(r.End) - int64(r.Start)) / r.Dt)
}

// At returns the timestamp of step i.
func (r TimeRange) At(i int) Timestamp {
	return Timestamp(int64(r.Start) + int64(i)*r.Dt)
}

// Index returns the step index of t, which may be out of range.
func (r TimeRange) Index(t Timestamp) int {
	return int((int64(t) - int64(r.Start)) / r.Dt)
}

// Widen extends the range by steps*Dt on each side.
func (r TimeRange) Widen(steps int) TimeRange {
	d := int64(steps) * r.Dt
	return TimeRange{Start: Timestamp(int64(r.Start) - d), End: Timestamp(int64(r.End) + d), Dt: r.Dt}
}

// AlignTo returns the smallest range with step dt that covers r.
func (r TimeRange) AlignTo(dt int64) TimeRange {
	return TimeRange{Start: r.Start.Floor(dt), End: r.End.Ceil(dt), Dt: dt}
}

// Intersect clips r to [start, end) keeping the step. The result may be
// empty (Count() == 0).
func (r TimeRange) Intersect(start, end Timestamp) TimeRange {
	s, e := r.Start, r.End
	if start > s {
		s = start.Ceil(r.Dt)
	}
	if end < e {
		e = end.Floor(r.Dt)
	}
	if e < s {
		e = s
	}
	return TimeRange{Start: s, End: e, Dt: r.Dt}
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s) dt=%ds", r.Start.Time().Format(time.RFC3339), r.End.Time().Format(time.RFC3339), r.Dt)
}
