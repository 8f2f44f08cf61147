package pathfinding

import (
	"voxelnav/internal/catalog"
	"voxelnav/internal/world"
)

// TerrainType classifies what occupying a cell means for movement.
type TerrainType uint8

const (
	TerrainAir TerrainType = iota
	TerrainSolidGround
	TerrainNormal
	TerrainWater
	TerrainHazardLiquid
	TerrainClimbable
	TerrainHazardous
	TerrainSlippery
	TerrainSticky
	TerrainViscous
)

var terrainNames = [...]string{
	TerrainAir:          "air",
	TerrainSolidGround:  "solid-ground",
	TerrainNormal:       "normal",
	TerrainWater:        "water",
	TerrainHazardLiquid: "hazard-liquid",
	TerrainClimbable:    "climbable",
	TerrainHazardous:    "hazardous",
	TerrainSlippery:     "slippery",
	TerrainSticky:       "sticky",
	TerrainViscous:      "viscous",
}

func (t TerrainType) String() string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "unknown"
}

var terrainMultipliers = [...]float64{
	TerrainAir:          0,
	TerrainSolidGround:  1,
	TerrainNormal:       1,
	TerrainWater:        2,
	TerrainHazardLiquid: 10,
	TerrainClimbable:    1.5,
	TerrainHazardous:    5,
	TerrainSlippery:     0.8,
	TerrainSticky:       1.5,
	TerrainViscous:      2.75,
}

// minMultiplier is the cheapest multiplier in the table. Scaling the
// heuristic by it keeps the estimate admissible.
const minMultiplier = 0.8

// Multiplier returns the ground traversal cost factor. Air has none and
// reports ok=false.
func (t TerrainType) Multiplier() (float64, bool) {
	if t == TerrainAir || int(t) >= len(terrainMultipliers) {
		return 0, false
	}
	return terrainMultipliers[t], true
}

// CostMultiplier returns the factor for the given mode. Flying actors cross
// air at unit cost.
func (t TerrainType) CostMultiplier(mode Mode) (float64, bool) {
	if t == TerrainAir && mode == ModeFlying {
		return 1, true
	}
	return t.Multiplier()
}

// Classify inspects the cell and its floor and returns the first matching
// terrain in precedence order.
func Classify(w WorldAccessor, coord world.BlockCoord) TerrainType {
	cell := w.Cell(coord)
	floor := w.Cell(coord.Down())
	own, under := cell.surface(), floor.surface()

	switch {
	case own == catalog.SurfaceLava || under == catalog.SurfaceLava:
		return TerrainHazardLiquid
	case own == catalog.SurfaceWater || under == catalog.SurfaceWater:
		return TerrainWater
	case own == catalog.SurfaceClimbable:
		return TerrainClimbable
	case own == catalog.SurfaceHazard || under == catalog.SurfaceHazard:
		return TerrainHazardous
	}
	if t, ok := specialSurface(own); ok {
		return t
	}
	if t, ok := specialSurface(under); ok {
		return t
	}
	if fullSupport(floor) {
		return TerrainSolidGround
	}
	if len(cell.Boxes()) > 0 || len(floor.Boxes()) > 0 {
		return TerrainNormal
	}
	return TerrainAir
}

func specialSurface(s catalog.Surface) (TerrainType, bool) {
	switch s {
	case catalog.SurfaceSlippery:
		return TerrainSlippery, true
	case catalog.SurfaceSticky:
		return TerrainSticky, true
	case catalog.SurfaceViscous:
		return TerrainViscous, true
	default:
		return TerrainAir, false
	}
}
