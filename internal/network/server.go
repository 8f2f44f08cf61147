package network

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Handler serves one decoded envelope. Handlers run on their own goroutine.
type Handler func(ctx context.Context, addr *net.UDPAddr, env Envelope)

type Server struct {
	conn    *net.UDPConn
	logger  *log.Logger
	maxSize int
	seq     atomic.Uint64

	mu       sync.RWMutex
	handlers map[MessageType][]Handler

	// inflight counts running handlers; Close waits for them.
	inflightMu sync.Mutex
	closing    bool
	inflight   sync.WaitGroup
}

func Listen(listenAddr string, logger *log.Logger, maxSize int) (*Server, error) {
	if maxSize <= 0 {
		maxSize = 64 * 1024
	}
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "network ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Server{
		conn:     conn,
		logger:   logger,
		maxSize:  maxSize,
		handlers: make(map[MessageType][]Handler),
	}, nil
}

// Close stops reading and waits for running handlers to return.
func (s *Server) Close() error {
	s.inflightMu.Lock()
	s.closing = true
	s.inflightMu.Unlock()
	err := s.conn.Close()
	s.inflight.Wait()
	return err
}

// LocalAddr returns the bound UDP address, useful when listening on port 0.
func (s *Server) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

func (s *Server) Register(msgType MessageType, handler Handler) {
	s.mu.Lock()
	s.handlers[msgType] = append(s.handlers[msgType], handler)
	s.mu.Unlock()
}

func (s *Server) Serve(ctx context.Context) error {
	buffer := make([]byte, s.maxSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if nErr, ok := err.(net.Error); ok && nErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		payload := make([]byte, n)
		copy(payload, buffer[:n])

		env, err := Decode(payload)
		if err != nil {
			s.logger.Printf("decode message from %s: %v", addr, err)
			continue
		}

		handlers := s.handlersFor(env.Type)
		if len(handlers) == 0 {
			continue
		}
		if !s.track(len(handlers)) {
			return net.ErrClosed
		}
		for _, h := range handlers {
			h := h
			go func() {
				defer s.inflight.Done()
				h(ctx, addr, env)
			}()
		}
	}
}

func (s *Server) track(n int) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if s.closing {
		return false
	}
	s.inflight.Add(n)
	return true
}

// HandleRequest registers a typed request handler. The payload is decoded
// into Req, fn's result is sent back as reply, and a failure is answered
// with an ErrorReply carrying the request key and error code.
func HandleRequest[Req, Resp any](s *Server, msg, reply MessageType, fn func(context.Context, Req) (Resp, error)) {
	s.Register(msg, func(ctx context.Context, addr *net.UDPAddr, env Envelope) {
		var req Req
		if err := DecodePayload(env, &req); err != nil {
			s.ReplyError(addr, msg, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}
		key := ""
		if k, ok := any(req).(Keyed); ok {
			key = k.RequestKey()
		}
		resp, err := fn(ctx, req)
		if err != nil {
			s.ReplyError(addr, msg, key, err)
			return
		}
		if err := s.Reply(addr, reply, resp); err != nil {
			// Long routes can exceed the datagram limit.
			s.ReplyError(addr, msg, key, err)
		}
	})
}

// ReplyError logs cause and answers addr with an ErrorReply.
func (s *Server) ReplyError(addr *net.UDPAddr, msg MessageType, key string, cause error) {
	s.logger.Printf("%s from %s: %v", msg, addr, cause)
	reply := ErrorReply{RequestID: key, Code: ErrorCode(cause), Message: cause.Error()}
	if err := s.Reply(addr, MessageError, reply); err != nil {
		s.logger.Printf("error reply to %s: %v", addr, err)
	}
}

func (s *Server) handlersFor(msgType MessageType) []Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Handler(nil), s.handlers[msgType]...)
}

func (s *Server) Send(addr string, msg MessageType, payload any) error {
	target, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	return s.Reply(target, msg, payload)
}

// Reply sends a message back to the sender of a request.
func (s *Server) Reply(addr *net.UDPAddr, msg MessageType, payload any) error {
	data, err := s.prepare(msg, payload)
	if err != nil {
		return err
	}
	if len(data) > s.maxSize {
		return fmt.Errorf("%s message of %d bytes exceeds datagram limit %d", msg, len(data), s.maxSize)
	}
	_, err = s.conn.WriteToUDP(data, addr)
	return err
}

func (s *Server) prepare(msgType MessageType, payload any) ([]byte, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	env := Envelope{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Seq:       s.seq.Add(1),
		Payload:   raw,
	}
	return Encode(env)
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte("null"), nil
	case []byte:
		return p, nil
	default:
		return jsonMarshal(payload)
	}
}

func jsonMarshal(v any) ([]byte, error) {
	type marshaler interface {
		MarshalJSON() ([]byte, error)
	}
	if m, ok := v.(marshaler); ok {
		return m.MarshalJSON()
	}
	return json.Marshal(v)
}
