package pathfinding

import (
	"math"

	"voxelnav/internal/catalog"
	"voxelnav/internal/world"
)

const (
	collisionEpsilon = 1e-4
	// SupportProbe is the depth below the feet that must touch geometry for
	// the actor to count as standing.
	SupportProbe = 0.05
)

// Collider describes the actor's upright bounding box.
type Collider struct {
	Width      float64
	Height     float64
	StepHeight float64
}

// DefaultCollider returns the standard humanoid body.
func DefaultCollider() Collider {
	return Collider{Width: 0.6, Height: 1.8, StepHeight: 0.6}
}

// BoxAt returns the body box with its feet centred on pos.
func (c Collider) BoxAt(pos Vec3) catalog.Box {
	half := c.Width / 2
	return catalog.Box{
		MinX: pos.X - half, MinY: pos.Y, MinZ: pos.Z - half,
		MaxX: pos.X + half, MaxY: pos.Y + c.Height, MaxZ: pos.Z + half,
	}
}

// Collides reports whether the body placed at pos overlaps any geometry.
func (c Collider) Collides(w WorldAccessor, pos Vec3) bool {
	return BoxCollides(w, c.BoxAt(pos))
}

// BoxCollides reports whether box overlaps the collision geometry of any
// voxel it touches. Shapes taller than a cell reach into the voxel above, so
// the scan starts one layer below the box.
func BoxCollides(w WorldAccessor, box catalog.Box) bool {
	collides := false
	forEachObstacle(w, box, func(obstacle catalog.Box) bool {
		if obstacle.Intersects(box, collisionEpsilon) {
			collides = true
			return false
		}
		return true
	})
	return collides
}

// Obstacles returns the world-space collision boxes near box.
func Obstacles(w WorldAccessor, box catalog.Box) []catalog.Box {
	var out []catalog.Box
	forEachObstacle(w, box, func(obstacle catalog.Box) bool {
		out = append(out, obstacle)
		return true
	})
	return out
}

func forEachObstacle(w WorldAccessor, box catalog.Box, fn func(catalog.Box) bool) {
	minX := int(math.Floor(box.MinX))
	maxX := int(math.Floor(box.MaxX))
	minY := int(math.Floor(box.MinY)) - 1
	maxY := int(math.Floor(box.MaxY))
	minZ := int(math.Floor(box.MinZ))
	maxZ := int(math.Floor(box.MaxZ))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			for z := minZ; z <= maxZ; z++ {
				cell := w.Cell(world.BlockCoord{X: x, Y: y, Z: z})
				for _, local := range cell.Boxes() {
					if !fn(local.Offset(float64(x), float64(y), float64(z))) {
						return
					}
				}
			}
		}
	}
}

// BodyClear reports whether the body fits at the cell's standing height.
func (c Collider) BodyClear(w WorldAccessor, coord world.BlockCoord) bool {
	return !c.Collides(w, CellCenter(coord, StandingHeight(w, coord)))
}

// Supported reports whether geometry sits directly beneath the feet at pos.
func (c Collider) Supported(w WorldAccessor, pos Vec3) bool {
	half := c.Width / 2
	probe := catalog.Box{
		MinX: pos.X - half, MinY: pos.Y - SupportProbe, MinZ: pos.Z - half,
		MaxX: pos.X + half, MaxY: pos.Y, MaxZ: pos.Z + half,
	}
	return BoxCollides(w, probe)
}

// CanStand reports whether the actor fits in the cell and has support
// beneath its feet.
func (c Collider) CanStand(w WorldAccessor, coord world.BlockCoord) bool {
	pos := CellCenter(coord, StandingHeight(w, coord))
	if c.Collides(w, pos) {
		return false
	}
	return c.Supported(w, pos)
}
