package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"voxelnav/internal/network"
)

const usage = `usage: pathclient [flags] <command>

commands:
  hello     print the server's region
  route     query a route between -from and -to
  spawn     spawn -actor at -pos (empty uses the region centre)
  execute   walk -actor to -to
  stop      stop -actor
  status    print the status of -actor
  edit      set the block at -to to -material (or toggle with -open)
`

func main() {
	server := flag.String("server", "127.0.0.1:19100", "navigation server UDP address")
	actor := flag.String("actor", "client-test", "actor id for spawn/execute/stop/status")
	from := flag.String("from", "0,1,0", "route start block x,y,z")
	to := flag.String("to", "0,1,0", "route goal or edited block x,y,z")
	pos := flag.String("pos", "", "spawn position x,y,z (floats)")
	mode := flag.String("mode", "", "search mode override (ground|flying)")
	maxNodes := flag.Int("maxnodes", 0, "node budget override (0 uses server default)")
	raw := flag.Bool("raw", false, "skip path compression")
	flying := flag.Bool("flying", false, "spawn a flying actor")
	material := flag.String("material", "", "material for edit (empty is air)")
	open := flag.String("open", "", "edit: set open state (true|false) instead of material")
	timeout := flag.Duration("timeout", 3*time.Second, "request timeout")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	client, err := network.Dial(*server, 0)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	search := network.SearchOverrides{Mode: *mode, MaxNodes: *maxNodes}

	switch cmd := flag.Arg(0); cmd {
	case "hello":
		var hello network.Hello
		must(client.Request(ctx, network.MessageHello, nil, network.MessageHello, &hello))
		fmt.Printf("%s: origin (%d,%d) size %d blocks, y %d..%d\n", hello.ServerID,
			hello.Region.OriginX, hello.Region.OriginZ, hello.Region.Size,
			hello.Region.MinY, hello.Region.MinY+hello.Region.Height-1)

	case "route":
		req := network.RouteRequest{
			RequestID: fmt.Sprintf("cli-%d", time.Now().UnixNano()),
			From:      mustStep(*from),
			To:        mustStep(*to),
			Search:    search,
			Raw:       *raw,
		}
		var resp network.RouteResponse
		must(client.Request(ctx, network.MessageRouteRequest, req, network.MessageRouteResponse, &resp))
		fmt.Printf("%s: cost %.2f, %d expanded, %.2fms\n", resp.Outcome, resp.Cost, resp.Expanded, resp.ElapsedMs)
		printSteps(resp.Steps)

	case "spawn":
		req := network.SpawnRequest{ActorID: *actor, Flying: *flying}
		if *pos != "" {
			req.Position = mustFloats(*pos)
		}
		var reply network.SpawnReply
		must(client.Request(ctx, network.MessageSpawnRequest, req, network.MessageSpawnReply, &reply))
		fmt.Printf("spawned %s\n", reply.ActorID)

	case "execute":
		req := network.ExecuteRequest{ActorID: *actor, Goal: mustStep(*to), Search: search}
		var reply network.ExecuteReply
		must(client.Request(ctx, network.MessageExecuteRequest, req, network.MessageExecuteReply, &reply))
		fmt.Printf("%s: accepted=%t outcome=%s\n", reply.ActorID, reply.Accepted, reply.Outcome)
		printSteps(reply.Steps)

	case "stop", "status":
		msg := network.MessageStatusRequest
		var payload any = network.StatusRequest{ActorID: *actor}
		if cmd == "stop" {
			msg = network.MessageStopRequest
			payload = network.StopRequest{ActorID: *actor}
		}
		var status network.ActorStatus
		must(client.Request(ctx, msg, payload, network.MessageStatusReply, &status))
		printStatus(status)

	case "edit":
		target := mustStep(*to)
		req := network.BlockEdit{X: target.X, Y: target.Y, Z: target.Z, Material: *material}
		if *open != "" {
			v := *open == "true"
			req.Open = &v
		}
		var ack network.BlockEditAck
		must(client.Request(ctx, network.MessageBlockEdit, req, network.MessageBlockEditAck, &ack))
		fmt.Printf("(%d,%d,%d) = %s open=%t, world version %d\n", ack.X, ack.Y, ack.Z, ack.Material, ack.Open, ack.Version)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func printSteps(steps []network.BlockStep) {
	for i, step := range steps {
		fmt.Printf(" %d: (%d,%d,%d)\n", i, step.X, step.Y, step.Z)
	}
}

func printStatus(s network.ActorStatus) {
	fmt.Printf("%s: %s step %d/%d tick %d grounded=%t sprinting=%t\n",
		s.ActorID, s.Status, s.Index, s.Steps, s.Tick, s.Grounded, s.Sprinting)
	if len(s.Position) == 3 {
		fmt.Printf(" position (%.2f, %.2f, %.2f)\n", s.Position[0], s.Position[1], s.Position[2])
	}
}

func must(err error) {
	if err != nil {
		log.Fatalf("request: %v", err)
	}
}

func mustStep(s string) network.BlockStep {
	var step network.BlockStep
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d,%d,%d", &step.X, &step.Y, &step.Z); err != nil {
		log.Fatalf("parse block %q: %v", s, err)
	}
	return step
}

func mustFloats(s string) []float64 {
	out := make([]float64, 3)
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g,%g,%g", &out[0], &out[1], &out[2]); err != nil {
		log.Fatalf("parse position %q: %v", s, err)
	}
	return out
}
