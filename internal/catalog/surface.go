package catalog

import (
	"fmt"
	"strings"
)

// Surface describes the movement trait a block contributes besides its geometry.
type Surface uint8

const (
	SurfacePlain Surface = iota
	SurfaceWater
	SurfaceLava
	SurfaceClimbable
	SurfaceHazard
	SurfaceSlippery
	SurfaceSticky
	SurfaceViscous
)

var surfaceNames = [...]string{
	SurfacePlain:     "plain",
	SurfaceWater:     "water",
	SurfaceLava:      "lava",
	SurfaceClimbable: "climbable",
	SurfaceHazard:    "hazard",
	SurfaceSlippery:  "slippery",
	SurfaceSticky:    "sticky",
	SurfaceViscous:   "viscous",
}

func (s Surface) String() string {
	if int(s) >= len(surfaceNames) {
		return fmt.Sprintf("surface(%d)", s)
	}
	return surfaceNames[s]
}

// Liquid reports whether the surface is a fluid the actor can swim in.
func (s Surface) Liquid() bool {
	return s == SurfaceWater || s == SurfaceLava
}

func ParseSurface(name string) (Surface, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return SurfacePlain, nil
	}
	for idx, candidate := range surfaceNames {
		if candidate == name {
			return Surface(idx), nil
		}
	}
	return SurfacePlain, fmt.Errorf("unknown surface %q", name)
}

func (s Surface) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Surface) UnmarshalText(text []byte) error {
	parsed, err := ParseSurface(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
