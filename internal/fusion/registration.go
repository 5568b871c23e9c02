package fusion

import (
	"sort"
	"time"
)

// MaxTemporalGap is the maximum timestamp deviation from a cycle's
// reference timestamp a sample may have before it is dropped, per
// spec.md §4.7 Stage A.
const MaxTemporalGap = 50 * time.Millisecond

// RegisterTemporal implements Stage A. The cycle's reference timestamp is
// the median of the batch's own timestamps (the original's nearest-in-
// time interpolation collapses to this when exactly one sample per
// sensor kind is supplied per cycle, the runtime's steady-state case).
// Any sample whose timestamp deviates from the reference by more than
// MaxTemporalGap is dropped from this cycle.
func RegisterTemporal(samples []Sample) []RegisteredSample {
	if len(samples) == 0 {
		return nil
	}

	times := make([]int64, len(samples))
	for i, s := range samples {
		times[i] = s.TimestampNS
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	reference := times[len(times)/2]

	out := make([]RegisteredSample, 0, len(samples))
	for _, s := range samples {
		gap := s.TimestampNS - reference
		if gap < 0 {
			gap = -gap
		}
		if time.Duration(gap) > MaxTemporalGap {
			continue
		}
		out = append(out, RegisteredSample{Sample: s, ReferenceTimestampNS: reference})
	}
	return out
}

// RegisterSpatial implements Stage B: transforms every sample's position
// into the common reference frame using the calibration transform for
// its sensor kind (identity if none is configured).
func RegisterSpatial(samples []RegisteredSample, transforms map[SensorKind]Transform) []RegisteredSample {
	out := make([]RegisteredSample, len(samples))
	for i, s := range samples {
		t, ok := transforms[s.Kind]
		if !ok {
			t = IdentityTransform()
		}
		s.Position = t.Apply(s.Position)
		out[i] = s
	}
	return out
}
