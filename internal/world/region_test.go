package world

import "testing"

func TestRegionLocateBlock(t *testing.T) {
	region := testRegion()
	tests := []struct {
		name  string
		block BlockCoord
		want  ChunkCoord
		ok    bool
	}{
		{name: "origin", block: BlockCoord{X: 0, Y: 0, Z: 0}, want: ChunkCoord{X: 0, Z: 0}, ok: true},
		{name: "second chunk", block: BlockCoord{X: 4, Y: 3, Z: 7}, want: ChunkCoord{X: 1, Z: 1}, ok: true},
		{name: "floor layer", block: BlockCoord{X: 1, Y: -2, Z: 1}, want: ChunkCoord{X: 0, Z: 0}, ok: true},
		{name: "below floor", block: BlockCoord{X: 1, Y: -3, Z: 1}, ok: false},
		{name: "above ceiling", block: BlockCoord{X: 1, Y: 6, Z: 1}, ok: false},
		{name: "negative x", block: BlockCoord{X: -1, Y: 0, Z: 0}, want: ChunkCoord{X: -1, Z: 0}, ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := region.LocateBlock(tc.block)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if tc.ok && got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRegionBounds(t *testing.T) {
	region := testRegion()
	bounds, err := region.ChunkBounds(ChunkCoord{X: 1, Z: 0})
	if err != nil {
		t.Fatalf("ChunkBounds: %v", err)
	}
	want := Bounds{Min: BlockCoord{X: 4, Y: -2, Z: 0}, Max: BlockCoord{X: 7, Y: 5, Z: 3}}
	if bounds != want {
		t.Fatalf("expected %+v, got %+v", want, bounds)
	}

	all := region.BlockBounds()
	if all.Max != (BlockCoord{X: 7, Y: 5, Z: 7}) {
		t.Fatalf("unexpected region max %+v", all.Max)
	}

	local, err := region.GlobalToLocalChunk(ChunkCoord{X: 1, Z: 1})
	if err != nil {
		t.Fatalf("GlobalToLocalChunk: %v", err)
	}
	global, err := region.LocalToGlobalChunk(local)
	if err != nil || global != (ChunkCoord{X: 1, Z: 1}) {
		t.Fatalf("round trip failed: %v %v", global, err)
	}
	if _, err := region.LocalToGlobalChunk(LocalChunkIndex{X: 2}); err == nil {
		t.Fatalf("expected out of range local index to fail")
	}
}

func TestFloorDiv(t *testing.T) {
	cases := map[[2]int]int{
		{0, 4}:  0,
		{3, 4}:  0,
		{4, 4}:  1,
		{-1, 4}: -1,
		{-4, 4}: -1,
		{-5, 4}: -2,
	}
	for in, want := range cases {
		if got := floorDiv(in[0], in[1]); got != want {
			t.Fatalf("floorDiv(%d,%d) = %d, want %d", in[0], in[1], got, want)
		}
	}
}
