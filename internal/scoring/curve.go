package scoring

import (
	"encoding/json"
	"fmt"
	"math"
)

// MinScaledScore is the floor of a section's scaled range. Scale returns it
// when a curve has no usable point.
const MinScaledScore = 200

// Point maps one raw score to a scaled [Lower, Upper] range.
type Point struct {
	Raw   int `json:"raw"`
	Lower int `json:"lower"`
	Upper int `json:"upper"`
}

func (p Point) midpoint() int {
	// round half up, matching how published ranges are reported
	return int(math.Floor(float64(p.Lower+p.Upper)/2 + 0.5))
}

// Curve is a raw -> scaled lookup table assigned to one section of an exam.
type Curve struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Points []Point `json:"curve_data"`
}

// ValidateCurve reports an empty table or an inverted range.
func ValidateCurve(points []Point) error {
	if len(points) == 0 {
		return &ConfigError{Scope: "curve", Reason: "curve data must be a non-empty array"}
	}
	for _, p := range points {
		if p.Lower > p.Upper {
			return &ConfigError{Scope: "curve", Reason: fmt.Sprintf("invalid curve range at raw %d: lower (%d) > upper (%d)", p.Raw, p.Lower, p.Upper)}
		}
	}
	return nil
}

// Scale maps a raw score to a scaled score.
//
// An exact raw entry yields the midpoint of its range. Otherwise the closest
// raw entry is used (ties go to the earlier entry), except that inputs below
// the table minimum or above its maximum saturate at that boundary entry.
// Negative raw scores are treated as 0.
//
// A configuration problem is returned as a *ConfigError together with a
// usable value, so callers that choose to continue still get a number.
func Scale(raw int, points []Point) (int, error) {
	cfgErr := ValidateCurve(points)
	usable := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Lower <= p.Upper {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return MinScaledScore, cfgErr
	}
	if raw < 0 {
		raw = 0
	}
	return lookup(raw, usable).midpoint(), cfgErr
}

func lookup(raw int, points []Point) Point {
	minP, maxP := points[0], points[0]
	for _, p := range points {
		if p.Raw == raw {
			return p
		}
		if p.Raw < minP.Raw {
			minP = p
		}
		if p.Raw > maxP.Raw {
			maxP = p
		}
	}
	switch {
	case raw < minP.Raw:
		return minP
	case raw > maxP.Raw:
		return maxP
	}
	best := points[0]
	bestDist := absInt(best.Raw - raw)
	for _, p := range points[1:] {
		if d := absInt(p.Raw - raw); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ParseCurve validates stored curve JSON (an array of {raw, lower, upper})
// and decodes it. Missing or non-integer fields are configuration errors.
func ParseCurve(data []byte) ([]Point, error) {
	if err := validateDocument(curveSchema, data); err != nil {
		return nil, &ConfigError{Scope: "curve", Reason: err.Error()}
	}
	var pts []Point
	if err := json.Unmarshal(data, &pts); err != nil {
		return nil, &ConfigError{Scope: "curve", Reason: err.Error()}
	}
	if err := ValidateCurve(pts); err != nil {
		return nil, err
	}
	return pts, nil
}
