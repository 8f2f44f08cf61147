package pathfinding

import (
	"voxelnav/internal/catalog"
	"voxelnav/internal/world"
)

// StandingHeight resolves the absolute height of the feet of an actor
// occupying coord. Partial shapes in the cell itself (slabs, mats, farmland,
// closed hatches) raise the feet inside the cell; a cell with no geometry of
// its own rests on whatever reaches the top of the cell below. Cells with
// neither, and cells filled to their top, report their floor level y.
func StandingHeight(w WorldAccessor, coord world.BlockCoord) float64 {
	base := float64(coord.Y)
	height := base
	found := false

	own := w.Cell(coord)
	if len(own.Boxes()) > 0 && own.Top() < 1 {
		height = base + own.Top()
		found = true
	}

	below := w.Cell(coord.Down())
	if len(below.Boxes()) > 0 {
		if top := below.Top(); top >= 1 {
			candidate := base - 1 + top
			if !found || candidate > height {
				height = candidate
			}
		}
	}
	return height
}

// IsWalkThrough reports whether a non-air cell lets the actor pass through:
// opened doors, gates and hatches, and decorative fixtures.
func IsWalkThrough(w WorldAccessor, coord world.BlockCoord) bool {
	cell := w.Cell(coord)
	if !cell.Loaded || cell.Def.IsAir() {
		return false
	}
	if cell.Def.Decorative() {
		return true
	}
	return cell.Def.Shape.Openable() && cell.Open
}

// NeedsJumpToReach reports whether target sits higher than current by more
// than the auto-step allowance.
func (c Collider) NeedsJumpToReach(w WorldAccessor, current, target world.BlockCoord) bool {
	return StandingHeight(w, target)-StandingHeight(w, current) > c.StepHeight+collisionEpsilon
}

func isLiquid(cell Cell) bool {
	return cell.surface().Liquid()
}

func isClimbable(cell Cell) bool {
	return cell.surface() == catalog.SurfaceClimbable
}

// fullSupport reports whether the cell offers a complete walking surface at
// or above its top face.
func fullSupport(cell Cell) bool {
	for _, box := range cell.Boxes() {
		if box.MinX <= 0 && box.MaxX >= 1 && box.MinZ <= 0 && box.MaxZ >= 1 && box.MaxY >= 1 {
			return true
		}
	}
	return false
}
