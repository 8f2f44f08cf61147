package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Duration is a JSON-friendly wrapper around time.Duration that accepts human
// readable strings such as "150ms" in configuration files while still
// allowing numeric representations when necessary.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		if s == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("duration: parse %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// Config captures the tunable parameters needed to bootstrap a navigation server.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Chunk      ChunkConfig      `json:"chunk"`
	Network    NetworkConfig    `json:"network"`
	HTTP       HTTPConfig       `json:"http"`
	Terrain    TerrainConfig    `json:"terrain"`
	Storage    StorageConfig    `json:"storage"`
	Journal    JournalConfig    `json:"journal"`
	Catalog    CatalogConfig    `json:"catalog"`
	Actor      ActorConfig      `json:"actor"`
	Search     SearchConfig     `json:"search"`
	Jump       JumpConfig       `json:"jump"`
	Replan     ReplanConfig     `json:"replan"`
	Executor   ExecutorConfig   `json:"executor"`
	Compressor CompressorConfig `json:"compressor"`
}

type ServerConfig struct {
	ID                string     `json:"id"`
	Description       string     `json:"description"`
	GlobalChunkOrigin ChunkIndex `json:"globalChunkOrigin"`
	TickRate          Duration   `json:"tickRate"`         // e.g. "50ms"
	StatusStreamRate  Duration   `json:"statusStreamRate"` // executor status push interval
	MaxActors         int        `json:"maxActors"`
	MovementWorkers   int        `json:"movementWorkers"` // goroutines stepping actors each tick
}

type ChunkConfig struct {
	Width         int `json:"width"`
	Depth         int `json:"depth"`
	Height        int `json:"height"`
	ChunksPerAxis int `json:"chunksPerAxis"`
	MinY          int `json:"minY"` // lowest block layer of the region
}

type NetworkConfig struct {
	ListenUDP            string   `json:"listenUdp"`            // ":19100"
	MaxDatagramSizeBytes int      `json:"maxDatagramSizeBytes"` // default to 64 KiB - UDP practical limit
	RequestTimeout       Duration `json:"requestTimeout"`       // upper bound for one route request
}

type HTTPConfig struct {
	Listen string `json:"listen"` // empty disables the HTTP surface
}

type TerrainConfig struct {
	Seed        int64   `json:"seed"`
	Frequency   float64 `json:"frequency"`
	Amplitude   float64 `json:"amplitude"`
	Octaves     int     `json:"octaves"`
	Persistence float64 `json:"persistence"`
	Lacunarity  float64 `json:"lacunarity"`
	BaseHeight  int     `json:"baseHeight"`
	WaterLevel  int     `json:"waterLevel"`
	HazardRate  float64 `json:"hazardRate"`  // chance a column carries a hazard feature
	FeatureRate float64 `json:"featureRate"` // chance a column carries fences, slabs or ladders
	Workers     int     `json:"workers"`     // column workers per chunk; 0 uses GOMAXPROCS*2
}

type StorageConfig struct {
	Kind string `json:"kind"` // "memory" or "disk"
	Path string `json:"path"`
}

type JournalConfig struct {
	Path          string   `json:"path"` // empty disables the journal
	BufferSize    int      `json:"bufferSize"`
	FlushInterval Duration `json:"flushInterval"`
}

type CatalogConfig struct {
	Path string `json:"path"` // empty uses the embedded catalog
}

type ActorConfig struct {
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	StepHeight   float64 `json:"stepHeight"`
	WalkSpeed    float64 `json:"walkSpeed"`   // blocks per tick
	SprintSpeed  float64 `json:"sprintSpeed"` // blocks per tick
	JumpVelocity float64 `json:"jumpVelocity"`
	Gravity      float64 `json:"gravity"`
	Drag         float64 `json:"drag"`
}

type SearchConfig struct {
	Mode             string   `json:"mode"` // "ground" or "flying"
	Diagonal         bool     `json:"diagonal"`
	MaxNodes         int      `json:"maxNodes"`
	Timeout          Duration `json:"timeout"`
	AllowSprintJumps bool     `json:"allowSprintJumps"`
	JumpPenalty      float64  `json:"jumpPenalty"`
	MaxDrop          int      `json:"maxDrop"`
}

type JumpConfig struct {
	JumpHeight    float64 `json:"jumpHeight"`
	MaxSafeFall   float64 `json:"maxSafeFall"`
	CooldownTicks int     `json:"cooldownTicks"`
	MaxGapWalk    int     `json:"maxGapWalk"`
	MaxGapSprint  int     `json:"maxGapSprint"`
	EdgeTiming    float64 `json:"edgeTiming"` // minimum timing score before a jump fires
}

type ReplanConfig struct {
	CooldownTicks  int      `json:"cooldownTicks"`
	Lookahead      int      `json:"lookahead"`
	DriftThreshold float64  `json:"driftThreshold"`
	MaxNodes       int      `json:"maxNodes"`
	Timeout        Duration `json:"timeout"`
}

type ExecutorConfig struct {
	ArrivalThreshold  float64 `json:"arrivalThreshold"`
	SprintDistance    float64 `json:"sprintDistance"`
	StuckTicks        int     `json:"stuckTicks"`
	MaxReplanAttempts int     `json:"maxReplanAttempts"`
}

type CompressorConfig struct {
	Enabled     bool    `json:"enabled"`
	MaxShortcut int     `json:"maxShortcut"`
	MinSpacing  float64 `json:"minSpacing"`
	SampleStep  float64 `json:"sampleStep"`
}

type ChunkIndex struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// Load reads configuration from a JSON file if provided. An empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ID:                "nav-server-0",
			Description:       "local development navigation server",
			GlobalChunkOrigin: ChunkIndex{X: 0, Z: 0},
			TickRate:          Duration(50 * time.Millisecond),
			StatusStreamRate:  Duration(250 * time.Millisecond),
			MaxActors:         256,
			MovementWorkers:   4,
		},
		Chunk: ChunkConfig{
			Width:         32,
			Depth:         32,
			Height:        128,
			ChunksPerAxis: 8,
			MinY:          -32,
		},
		Network: NetworkConfig{
			ListenUDP:            ":19100",
			MaxDatagramSizeBytes: 1 << 16,
			RequestTimeout:       Duration(2 * time.Second),
		},
		HTTP: HTTPConfig{
			Listen: ":19180",
		},
		Terrain: TerrainConfig{
			Seed:        1337,
			Frequency:   0.02,
			Amplitude:   6,
			Octaves:     3,
			Persistence: 0.5,
			Lacunarity:  2.0,
			BaseHeight:  0,
			WaterLevel:  -2,
			HazardRate:  0.01,
			FeatureRate: 0.02,
		},
		Storage: StorageConfig{
			Kind: "memory",
		},
		Journal: JournalConfig{
			BufferSize:    256,
			FlushInterval: Duration(time.Second),
		},
		Actor: ActorConfig{
			Width:        0.6,
			Height:       1.8,
			StepHeight:   0.6,
			WalkSpeed:    0.2159,
			SprintSpeed:  0.2806,
			JumpVelocity: 0.42,
			Gravity:      0.08,
			Drag:         0.98,
		},
		Search: SearchConfig{
			Mode:             "ground",
			Diagonal:         true,
			MaxNodes:         50_000,
			Timeout:          Duration(500 * time.Millisecond),
			AllowSprintJumps: false,
			JumpPenalty:      1.0,
			MaxDrop:          3,
		},
		Jump: JumpConfig{
			JumpHeight:    1.25,
			MaxSafeFall:   3,
			CooldownTicks: 10,
			MaxGapWalk:    2,
			MaxGapSprint:  3,
			EdgeTiming:    0.5,
		},
		Replan: ReplanConfig{
			CooldownTicks:  20,
			Lookahead:      3,
			DriftThreshold: 2.0,
			MaxNodes:       20_000,
			Timeout:        Duration(250 * time.Millisecond),
		},
		Executor: ExecutorConfig{
			ArrivalThreshold:  0.35,
			SprintDistance:    5,
			StuckTicks:        40,
			MaxReplanAttempts: 3,
		},
		Compressor: CompressorConfig{
			Enabled:     true,
			MaxShortcut: 8,
			MinSpacing:  1.0,
			SampleStep:  0.5,
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.ID == "" {
		return errors.New("server.id must be set")
	}
	if c.Server.TickRate <= 0 {
		return errors.New("server.tickRate must be positive")
	}
	if c.Server.MaxActors <= 0 {
		return errors.New("server.maxActors must be positive")
	}
	if c.Chunk.Width <= 0 || c.Chunk.Depth <= 0 || c.Chunk.Height <= 0 {
		return errors.New("chunk dimensions must be positive")
	}
	if c.Chunk.ChunksPerAxis <= 0 {
		return errors.New("chunk.chunksPerAxis must be positive")
	}
	if c.Network.ListenUDP == "" {
		return errors.New("network.listenUdp must be set")
	}
	switch c.Storage.Kind {
	case "", "memory":
	case "disk":
		if c.Storage.Path == "" {
			return errors.New("storage.path must be set for disk storage")
		}
	default:
		return errors.New("storage.kind must be memory or disk")
	}
	if c.Journal.BufferSize < 0 {
		return errors.New("journal.bufferSize cannot be negative")
	}
	if c.Actor.Width <= 0 || c.Actor.Height <= 0 {
		return errors.New("actor dimensions must be positive")
	}
	if c.Actor.StepHeight < 0 {
		return errors.New("actor.stepHeight cannot be negative")
	}
	if c.Actor.SprintSpeed < c.Actor.WalkSpeed {
		return errors.New("actor.sprintSpeed must be >= walkSpeed")
	}
	if c.Search.Mode != "ground" && c.Search.Mode != "flying" {
		return errors.New("search.mode must be ground or flying")
	}
	if c.Search.MaxNodes <= 0 {
		return errors.New("search.maxNodes must be positive")
	}
	if c.Search.JumpPenalty < 0 {
		return errors.New("search.jumpPenalty cannot be negative")
	}
	if c.Jump.JumpHeight < c.Actor.StepHeight {
		return errors.New("jump.jumpHeight must be >= actor.stepHeight")
	}
	if c.Jump.MaxSafeFall <= 0 {
		return errors.New("jump.maxSafeFall must be positive")
	}
	if c.Jump.MaxGapSprint < c.Jump.MaxGapWalk {
		return errors.New("jump.maxGapSprint must be >= maxGapWalk")
	}
	if c.Jump.EdgeTiming < 0 || c.Jump.EdgeTiming > 1 {
		return errors.New("jump.edgeTiming must be within [0,1]")
	}
	if c.Replan.Lookahead <= 0 {
		return errors.New("replan.lookahead must be positive")
	}
	if c.Replan.DriftThreshold <= 0 {
		return errors.New("replan.driftThreshold must be positive")
	}
	if c.Executor.ArrivalThreshold <= 0 {
		return errors.New("executor.arrivalThreshold must be positive")
	}
	if c.Executor.MaxReplanAttempts <= 0 {
		return errors.New("executor.maxReplanAttempts must be positive")
	}
	if c.Compressor.MaxShortcut < 1 {
		return errors.New("compressor.maxShortcut must be at least 1")
	}
	if c.Compressor.SampleStep <= 0 || c.Compressor.SampleStep > 0.5 {
		return errors.New("compressor.sampleStep must be within (0,0.5]")
	}
	return nil
}
