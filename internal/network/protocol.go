package network

import (
	"encoding/json"
	"errors"
	"time"

	"voxelnav/internal/world"
)

type MessageType string

const (
	MessageHello          MessageType = "hello"
	MessageKeepAlive      MessageType = "keepAlive"
	MessageError          MessageType = "error"
	MessageRouteRequest   MessageType = "routeRequest"
	MessageRouteResponse  MessageType = "routeResponse"
	MessageSpawnRequest   MessageType = "spawnRequest"
	MessageSpawnReply     MessageType = "spawnReply"
	MessageExecuteRequest MessageType = "executeRequest"
	MessageExecuteReply   MessageType = "executeReply"
	MessageStopRequest    MessageType = "stopRequest"
	MessageStatusRequest  MessageType = "statusRequest"
	MessageStatusReply    MessageType = "statusReply"
	MessageBlockEdit      MessageType = "blockEdit"
	MessageBlockEditAck   MessageType = "blockEditAck"
)

// Errors shared by every request surface. Handlers wrap them so callers can
// map failures onto transport status codes.
var (
	ErrUnknownActor   = errors.New("unknown actor")
	ErrActorExists    = errors.New("actor already exists")
	ErrInvalidRequest = errors.New("invalid request")
)

type Envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Seq       uint64          `json:"seq"`
	Payload   json.RawMessage `json:"payload"`
}

type Hello struct {
	ServerID string `json:"serverId"`
	Region   struct {
		OriginX int `json:"originX"`
		OriginZ int `json:"originZ"`
		Size    int `json:"size"`
		MinY    int `json:"minY"`
		Height  int `json:"height"`
	} `json:"region"`
}

type KeepAlive struct {
	ServerID string    `json:"serverId"`
	Actors   int       `json:"actors"`
	Time     time.Time `json:"time"`
}

// ErrorReply answers a request that could not be served. Code names the
// shared error the failure wraps, if any.
type ErrorReply struct {
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

var errorCodes = []struct {
	code string
	err  error
}{
	{"unknown_actor", ErrUnknownActor},
	{"actor_exists", ErrActorExists},
	{"invalid_request", ErrInvalidRequest},
}

// ErrorCode returns the wire code for err, or "" when err wraps none of the
// shared errors.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

func errorForCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

// Keyed requests name the actor or query an error reply refers to.
type Keyed interface {
	RequestKey() string
}

type BlockStep struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func StepFromCoord(c world.BlockCoord) BlockStep {
	return BlockStep{X: c.X, Y: c.Y, Z: c.Z}
}

func (s BlockStep) Coord() world.BlockCoord {
	return world.BlockCoord{X: s.X, Y: s.Y, Z: s.Z}
}

func StepsFromCoords(coords []world.BlockCoord) []BlockStep {
	out := make([]BlockStep, len(coords))
	for i, c := range coords {
		out[i] = StepFromCoord(c)
	}
	return out
}

// SearchOverrides adjusts the server's default search options for one
// request. Nil and zero fields keep the defaults.
type SearchOverrides struct {
	Mode             string `json:"mode,omitempty"`
	Diagonal         *bool  `json:"diagonal,omitempty"`
	MaxNodes         int    `json:"maxNodes,omitempty"`
	TimeoutMs        int    `json:"timeoutMs,omitempty"`
	AllowSprintJumps *bool  `json:"allowSprintJumps,omitempty"`
}

type RouteRequest struct {
	RequestID string          `json:"requestId"`
	From      BlockStep       `json:"from"`
	To        BlockStep       `json:"to"`
	Search    SearchOverrides `json:"search"`
	// Raw skips compression.
	Raw bool `json:"raw,omitempty"`
}

func (r RouteRequest) RequestKey() string { return r.RequestID }

type RouteResponse struct {
	RequestID string      `json:"requestId"`
	Outcome   string      `json:"outcome"`
	Cost      float64     `json:"cost"`
	Expanded  int         `json:"expanded"`
	Steps     []BlockStep `json:"steps"`
	ElapsedMs float64     `json:"elapsedMs"`
}

type SpawnRequest struct {
	ActorID  string    `json:"actorId"`
	Name     string    `json:"name,omitempty"`
	Position []float64 `json:"position"`
	Flying   bool      `json:"flying,omitempty"`
}

func (r SpawnRequest) RequestKey() string { return r.ActorID }

type SpawnReply struct {
	ActorID string `json:"actorId"`
	Created bool   `json:"created"`
	Message string `json:"message,omitempty"`
}

type ExecuteRequest struct {
	ActorID string          `json:"actorId"`
	Goal    BlockStep       `json:"goal"`
	Search  SearchOverrides `json:"search"`
}

func (r ExecuteRequest) RequestKey() string { return r.ActorID }

type ExecuteReply struct {
	ActorID  string      `json:"actorId"`
	Accepted bool        `json:"accepted"`
	Outcome  string      `json:"outcome"`
	Steps    []BlockStep `json:"steps"`
}

type StopRequest struct {
	ActorID string `json:"actorId"`
}

func (r StopRequest) RequestKey() string { return r.ActorID }

type StatusRequest struct {
	ActorID string `json:"actorId"`
}

func (r StatusRequest) RequestKey() string { return r.ActorID }

type ActorStatus struct {
	ActorID   string    `json:"actorId"`
	Status    string    `json:"status"`
	Index     int       `json:"index"`
	Steps     int       `json:"steps"`
	Position  []float64 `json:"position"`
	Velocity  []float64 `json:"velocity"`
	Grounded  bool      `json:"grounded"`
	Sprinting bool      `json:"sprinting"`
	Tick      int64     `json:"tick"`
}

type BlockEdit struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Material string `json:"material,omitempty"`
	// Open toggles a door, gate or hatch instead of replacing the block.
	Open *bool `json:"open,omitempty"`
}

type BlockEditAck struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Material string `json:"material"`
	Open     bool   `json:"open"`
	Version  uint64 `json:"version"`
}

func Encode(msg Envelope) ([]byte, error) {
	return json.Marshal(msg)
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}

// DecodePayload unmarshals the envelope payload into v.
func DecodePayload(env Envelope, v any) error {
	return json.Unmarshal(env.Payload, v)
}
