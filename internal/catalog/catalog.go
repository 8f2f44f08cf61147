package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Well-known block names used by the terrain generator and tests.
const (
	Air       = "air"
	Stone     = "stone"
	Grass     = "grass"
	Dirt      = "dirt"
	Sand      = "sand"
	Planks    = "planks"
	Water     = "water"
	Lava      = "lava"
	Ladder    = "ladder"
	Vine      = "vine"
	Fire      = "fire"
	BerryBush = "berry_bush"
	Magma     = "magma"
	Cactus    = "cactus"
	Ice       = "ice"
	Honey     = "honey"
	SoulSand  = "soul_sand"
	Cobweb    = "cobweb"
	Slab      = "slab"
	Fence     = "fence"
	Wall      = "wall"
	Pane      = "pane"
	Carpet    = "carpet"
	Farmland  = "farmland"
	Trapdoor  = "trapdoor"
	Door      = "door"
	FenceGate = "fence_gate"
	Barricade = "barricade"
	TallGrass = "tall_grass"
	Flower    = "flower"
	Wheat     = "wheat"
	Sign      = "sign"
	Banner    = "banner"
)

//go:embed blocks.yaml
var defaultBlocksYAML []byte

//go:embed blocks.schema.json
var blocksSchemaJSON []byte

const schemaURL = "https://voxelnav.local/schemas/blocks.schema.json"

// Definition registers the geometry and movement trait of one block kind.
type Definition struct {
	Name    string  `json:"name"`
	Shape   Shape   `json:"shape"`
	Surface Surface `json:"surface,omitempty"`
}

// IsAir reports whether the definition describes empty space.
func (d Definition) IsAir() bool {
	return d.Name == "" || d.Name == Air
}

// Decorative reports whether the block is present but never obstructs
// movement (foliage, signs, banners).
func (d Definition) Decorative() bool {
	return !d.IsAir() && d.Shape == ShapeEmpty && d.Surface == SurfacePlain
}

type document struct {
	Blocks []Definition `json:"blocks"`
}

// Catalog resolves block names to definitions.
type Catalog struct {
	defs map[string]Definition
}

// New builds a catalog from explicit definitions.
func New(defs []Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]Definition, len(defs)+1)}
	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("blocks[%d].name must be set", i)
		}
		if _, exists := c.defs[def.Name]; exists {
			return nil, fmt.Errorf("blocks[%d]: duplicate block %q", i, def.Name)
		}
		c.defs[def.Name] = def
	}
	if _, ok := c.defs[Air]; !ok {
		c.defs[Air] = Definition{Name: Air, Shape: ShapeEmpty}
	}
	return c, nil
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func catalogSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(blocksSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add catalog schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile catalog schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Parse decodes a YAML catalog document, validates it against the embedded
// schema and builds the catalog.
func Parse(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert catalog to json: %w", err)
	}
	var generic any
	if err := json.Unmarshal(asJSON, &generic); err != nil {
		return nil, fmt.Errorf("decode catalog json: %w", err)
	}

	s, err := catalogSchema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(generic); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	var doc document
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Blocks)
}

// LoadFile reads a catalog from disk. An empty path returns the default catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded block catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultBlocksYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded block catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup resolves a block name. Unknown names resolve to a full cube so that
// unregistered solids obstruct rather than let the actor through.
func (c *Catalog) Lookup(name string) Definition {
	if name == "" || name == Air {
		return Definition{Name: Air, Shape: ShapeEmpty}
	}
	if c != nil {
		if def, ok := c.defs[name]; ok {
			return def
		}
	}
	return Definition{Name: name, Shape: ShapeFull}
}

// Known reports whether the name is registered.
func (c *Catalog) Known(name string) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	def, ok := c.defs[name]
	return def, ok
}

// Definitions returns the registered definitions sorted by name.
func (c *Catalog) Definitions() []Definition {
	if c == nil {
		return nil
	}
	out := make([]Definition, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
