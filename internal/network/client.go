package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrRemote is wrapped by errors the server answered with an error message.
var ErrRemote = errors.New("remote error")

// Client issues request/reply exchanges against a navigation server. Calls
// are serialised because replies are matched by arrival order.
type Client struct {
	conn    *net.UDPConn
	target  *net.UDPAddr
	maxSize int
	seq     atomic.Uint64
	mu      sync.Mutex
}

func Dial(server string, maxSize int) (*Client, error) {
	if maxSize <= 0 {
		maxSize = 64 * 1024
	}
	target, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, fmt.Errorf("resolve server: %w", err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	return &Client{conn: conn, target: target, maxSize: maxSize}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Send fires a message without waiting for a reply.
func (c *Client) Send(msg MessageType, payload any) error {
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	data, err := Encode(Envelope{
		Type:      msg,
		Timestamp: time.Now().UTC(),
		Seq:       c.seq.Add(1),
		Payload:   raw,
	})
	if err != nil {
		return err
	}
	_, err = c.conn.WriteToUDP(data, c.target)
	return err
}

// Request sends msg and decodes the first reply of type want into out. An
// error reply from the server is returned wrapping ErrRemote and, when the
// reply carries a code, the matching shared error.
func (c *Client) Request(ctx context.Context, msg MessageType, payload any, want MessageType, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(3 * time.Second)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return err
	}
	if err := c.Send(msg, payload); err != nil {
		return fmt.Errorf("send %s: %w", msg, err)
	}

	buf := make([]byte, c.maxSize)
	for {
		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			return fmt.Errorf("await %s: %w", want, err)
		}
		env, err := Decode(buf[:n])
		if err != nil {
			continue
		}
		switch env.Type {
		case want:
			if out == nil {
				return nil
			}
			return DecodePayload(env, out)
		case MessageError:
			var reply ErrorReply
			if err := DecodePayload(env, &reply); err != nil {
				return fmt.Errorf("decode error reply: %w", err)
			}
			if known := errorForCode(reply.Code); known != nil {
				return fmt.Errorf("%w: %w: %s", ErrRemote, known, reply.Message)
			}
			return fmt.Errorf("%w: %s", ErrRemote, reply.Message)
		}
	}
}
