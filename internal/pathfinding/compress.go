package pathfinding

import (
	"math"

	"voxelnav/internal/world"
)

// Compressor shortens routes by straight-line shortcutting and by dropping
// steps that sit too close to their predecessor.
type Compressor struct {
	Collider Collider
	// MaxShortcut bounds the length of a single shortcut in blocks.
	MaxShortcut int
	MinSpacing  float64
	// SampleStep is the largest distance between collision samples along a
	// segment.
	SampleStep float64
}

func DefaultCompressor() Compressor {
	return Compressor{Collider: DefaultCollider(), MaxShortcut: 8, MinSpacing: 1.0, SampleStep: 0.5}
}

// Compress returns a route with the same endpoints and no more steps. Every
// consecutive pair of the result is either consecutive in the input or
// passes SegmentClear.
func (c Compressor) Compress(w WorldAccessor, route Route) Route {
	out := route.Clone()
	if len(route.Steps) <= 2 {
		return out
	}
	kept := c.shortcut(w, route.Steps, route.Mode)
	out.Steps = c.prune(w, kept, route.Mode)
	return out
}

func (c Compressor) shortcut(w WorldAccessor, steps []world.BlockCoord, mode Mode) []world.BlockCoord {
	last := len(steps) - 1
	kept := []world.BlockCoord{steps[0]}
	for i := 0; i < last; {
		next := i + 1
		for j := last; j > i+1; j-- {
			if cellDistance(steps[i], steps[j]) > float64(c.MaxShortcut) {
				continue
			}
			if c.segmentClear(w, steps[i], steps[j], mode) {
				next = j
				break
			}
		}
		kept = append(kept, steps[next])
		i = next
	}
	return kept
}

// prune removes steps closer than MinSpacing to the previously kept step when
// skipping them still leaves a clear segment. The first and last steps stay.
func (c Compressor) prune(w WorldAccessor, steps []world.BlockCoord, mode Mode) []world.BlockCoord {
	if len(steps) <= 2 || c.MinSpacing <= 0 {
		return steps
	}
	out := []world.BlockCoord{steps[0]}
	for i := 1; i < len(steps)-1; i++ {
		prev := out[len(out)-1]
		if cellDistance(prev, steps[i]) < c.MinSpacing && c.segmentClear(w, prev, steps[i+1], mode) {
			continue
		}
		out = append(out, steps[i])
	}
	return append(out, steps[len(steps)-1])
}

// SegmentClear reports whether a ground actor can walk the straight line
// between the centres of a and b.
func (c Compressor) SegmentClear(w WorldAccessor, a, b world.BlockCoord) bool {
	return c.segmentClear(w, a, b, ModeGround)
}

// ShortcutClear is SegmentClear for ground routes and an unobstructed
// straight flight for flying ones.
func (c Compressor) ShortcutClear(w WorldAccessor, a, b world.BlockCoord, mode Mode) bool {
	return c.segmentClear(w, a, b, mode)
}

func (c Compressor) segmentClear(w WorldAccessor, a, b world.BlockCoord, mode Mode) bool {
	if mode == ModeFlying {
		return c.flightClear(w, a, b)
	}
	if a.Y != b.Y {
		return false
	}
	height := StandingHeight(w, a)
	if math.Abs(StandingHeight(w, b)-height) > collisionEpsilon {
		return false
	}
	limit, ok := segmentMultiplierLimit(w, a, b)
	if !ok {
		return false
	}

	start := CellCenter(a, height)
	end := CellCenter(b, height)
	samples := c.sampleCount(start.HorizontalDist(end))
	for s := 0; s <= samples; s++ {
		t := float64(s) / float64(samples)
		pos := start.Add(end.Sub(start).Scale(t))
		if c.Collider.Collides(w, pos) {
			return false
		}
		cell := world.BlockCoord{X: int(math.Floor(pos.X)), Y: a.Y, Z: int(math.Floor(pos.Z))}
		if !c.Collider.CanStand(w, cell) {
			return false
		}
		if math.Abs(StandingHeight(w, cell)-height) > collisionEpsilon {
			return false
		}
		multiplier, ok := Classify(w, cell).Multiplier()
		if !ok || multiplier > limit+collisionEpsilon {
			return false
		}
	}
	return true
}

func (c Compressor) flightClear(w WorldAccessor, a, b world.BlockCoord) bool {
	start := CellCenter(a, float64(a.Y))
	end := CellCenter(b, float64(b.Y))
	samples := c.sampleCount(end.Sub(start).Len())
	for s := 0; s <= samples; s++ {
		t := float64(s) / float64(samples)
		if c.Collider.Collides(w, start.Add(end.Sub(start).Scale(t))) {
			return false
		}
	}
	return true
}

func (c Compressor) sampleCount(distance float64) int {
	step := c.SampleStep
	if step <= 0 || step > 0.5 {
		step = 0.5
	}
	samples := int(math.Ceil(distance / step))
	if samples < 1 {
		samples = 1
	}
	return samples
}

// segmentMultiplierLimit is the costlier endpoint multiplier. Shortcuts may
// not cross terrain worse than either end.
func segmentMultiplierLimit(w WorldAccessor, a, b world.BlockCoord) (float64, bool) {
	ma, ok := Classify(w, a).Multiplier()
	if !ok {
		return 0, false
	}
	mb, ok := Classify(w, b).Multiplier()
	if !ok {
		return 0, false
	}
	return math.Max(ma, mb), true
}

func cellDistance(a, b world.BlockCoord) float64 {
	return baseLength(b.X-a.X, b.Y-a.Y, b.Z-a.Z, true)
}
