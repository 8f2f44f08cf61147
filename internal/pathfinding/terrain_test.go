package pathfinding

import (
	"testing"

	"voxelnav/internal/catalog"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		own   string
		floor string
		want  TerrainType
	}{
		{name: "stone floor", floor: catalog.Stone, want: TerrainSolidGround},
		{name: "carpet on stone", own: catalog.Carpet, floor: catalog.Stone, want: TerrainSolidGround},
		{name: "above slab", floor: catalog.Slab, want: TerrainNormal},
		{name: "fence top", floor: catalog.Fence, want: TerrainNormal},
		{name: "nothing below", want: TerrainAir},
		{name: "lava floor", floor: catalog.Lava, want: TerrainHazardLiquid},
		{name: "in lava", own: catalog.Lava, floor: catalog.Stone, want: TerrainHazardLiquid},
		{name: "water over lava", own: catalog.Water, floor: catalog.Lava, want: TerrainHazardLiquid},
		{name: "in water", own: catalog.Water, floor: catalog.Stone, want: TerrainWater},
		{name: "ladder over water", own: catalog.Ladder, floor: catalog.Water, want: TerrainWater},
		{name: "ladder over ice", own: catalog.Ladder, floor: catalog.Ice, want: TerrainClimbable},
		{name: "fire over ice", own: catalog.Fire, floor: catalog.Ice, want: TerrainHazardous},
		{name: "magma floor", floor: catalog.Magma, want: TerrainHazardous},
		{name: "ice floor", floor: catalog.Ice, want: TerrainSlippery},
		{name: "honey floor", floor: catalog.Honey, want: TerrainSticky},
		{name: "soul sand floor", floor: catalog.SoulSand, want: TerrainViscous},
		{name: "cobweb on ice", own: catalog.Cobweb, floor: catalog.Ice, want: TerrainViscous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newFakeWorld(bc(-1, -2, -1), bc(1, 2, 1))
			w.set(bc(0, 0, 0), tt.own)
			w.set(bc(0, -1, 0), tt.floor)
			if got := Classify(w, bc(0, 0, 0)); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassifyUnloadedFloorIsSolid(t *testing.T) {
	w := newFakeWorld(bc(0, 0, 0), bc(1, 2, 1))
	if got := Classify(w, bc(0, 0, 0)); got != TerrainSolidGround {
		t.Fatalf("expected unloaded floor to read as solid ground, got %s", got)
	}
}

func TestTerrainMultipliers(t *testing.T) {
	if _, ok := TerrainAir.Multiplier(); ok {
		t.Fatalf("air must be unusable for ground actors")
	}
	if m, ok := TerrainAir.CostMultiplier(ModeFlying); !ok || m != 1 {
		t.Fatalf("flying actors cross air at unit cost, got %v %v", m, ok)
	}
	if m, _ := TerrainHazardLiquid.Multiplier(); m != 10 {
		t.Fatalf("expected hazard liquid multiplier 10, got %v", m)
	}
	if m, _ := TerrainHazardous.Multiplier(); m != 5 {
		t.Fatalf("expected hazardous multiplier 5, got %v", m)
	}
	for tt := TerrainSolidGround; tt <= TerrainViscous; tt++ {
		m, ok := tt.Multiplier()
		if !ok || m < minMultiplier {
			t.Fatalf("%s multiplier %v below the heuristic floor", tt, m)
		}
		if tt.String() == "unknown" {
			t.Fatalf("terrain %d has no name", tt)
		}
	}
	if TerrainType(200).String() != "unknown" {
		t.Fatalf("expected unknown name for out of range terrain")
	}
}
