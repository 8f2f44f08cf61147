package server

import (
	"context"
	"net"
	"time"

	"voxelnav/internal/network"
)

func (s *Server) registerHandlers() {
	s.net.Register(network.MessageHello, s.onHello)
	s.net.Register(network.MessageKeepAlive, s.onKeepAlive)
	network.HandleRequest(s.net, network.MessageRouteRequest, network.MessageRouteResponse, s.FindRoute)
	network.HandleRequest(s.net, network.MessageSpawnRequest, network.MessageSpawnReply,
		func(ctx context.Context, req network.SpawnRequest) (network.SpawnReply, error) {
			return s.Spawn(req)
		})
	network.HandleRequest(s.net, network.MessageExecuteRequest, network.MessageExecuteReply, s.Execute)
	network.HandleRequest(s.net, network.MessageStopRequest, network.MessageStatusReply,
		func(ctx context.Context, req network.StopRequest) (network.ActorStatus, error) {
			return s.Stop(req.ActorID)
		})
	network.HandleRequest(s.net, network.MessageStatusRequest, network.MessageStatusReply,
		func(ctx context.Context, req network.StatusRequest) (network.ActorStatus, error) {
			return s.Status(req.ActorID)
		})
	network.HandleRequest(s.net, network.MessageBlockEdit, network.MessageBlockEditAck, s.EditBlock)
}

func (s *Server) onHello(ctx context.Context, addr *net.UDPAddr, env network.Envelope) {
	if err := s.net.Reply(addr, network.MessageHello, s.Hello()); err != nil {
		s.logger.Printf("hello reply to %s: %v", addr, err)
	}
}

func (s *Server) onKeepAlive(ctx context.Context, addr *net.UDPAddr, env network.Envelope) {
	msg := network.KeepAlive{
		ServerID: s.cfg.Server.ID,
		Actors:   s.entities.Len(),
		Time:     time.Now().UTC(),
	}
	if err := s.net.Reply(addr, network.MessageKeepAlive, msg); err != nil {
		s.logger.Printf("keepalive reply to %s: %v", addr, err)
	}
}
