package net

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/gossip"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Frame kinds. A request is one kind byte followed by the msgpack encoded
// command. A reply is an error string followed by the msgpack encoded
// response, both always present.
const (
	frameGossip byte = iota
	frameFetchDelta
)

const bufSize = 64 * 1024

var msgpackHandle = &codec.MsgpackHandle{}

// ErrTransportShutdown is returned by a transport used after Close.
var ErrTransportShutdown = errors.New("transport shutdown")

// commandForFrame allocates the command decoded from a request frame.
var commandForFrame = map[byte]func() interface{}{
	frameGossip:     func() interface{} { return &GossipRequest{} },
	frameFetchDelta: func() interface{} { return &FetchDeltaRequest{} },
}

// NetworkTransport carries gossip envelopes and delta fetches over a
// StreamLayer. Outbound connections are kept in a small per-target pool.
// Gossip and fetches have separate I/O deadlines because a fetch returns a
// whole delta body.
type NetworkTransport struct {
	stream StreamLayer
	pool   *connPool

	consumeCh chan RPC

	timeout      time.Duration
	fetchTimeout time.Duration

	closeOnce  sync.Once
	shutdownCh chan struct{}

	logger *logrus.Entry
}

// NewNetworkTransport wraps stream. maxPool is the number of idle connections
// kept per target.
func NewNetworkTransport(
	stream StreamLayer,
	maxPool int,
	timeout time.Duration,
	fetchTimeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &NetworkTransport{
		stream:       stream,
		pool:         &connPool{idle: make(map[string][]*peerConn), max: maxPool},
		consumeCh:    make(chan RPC),
		timeout:      timeout,
		fetchTimeout: fetchTimeout,
		shutdownCh:   make(chan struct{}),
		logger:       logger,
	}
}

// Close stops the transport. It is safe to call more than once.
func (n *NetworkTransport) Close() error {
	n.closeOnce.Do(func() {
		close(n.shutdownCh)
		n.stream.Close()
		n.pool.drain()
	})
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	if addr := n.stream.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown ...
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// Gossip implements the Transport interface.
func (n *NetworkTransport) Gossip(target string, msg *gossip.SignedMessage) error {
	var resp GossipResponse
	return n.call(target, frameGossip, n.timeout, &GossipRequest{Envelope: *msg}, &resp)
}

// FetchDelta implements the Transport interface.
func (n *NetworkTransport) FetchDelta(target string, args *FetchDeltaRequest, resp *FetchDeltaResponse) error {
	return n.call(target, frameFetchDelta, n.fetchTimeout, args, resp)
}

func (n *NetworkTransport) call(target string, kind byte, timeout time.Duration, req, resp interface{}) error {
	c := n.pool.take(target)
	if c == nil {
		conn, err := n.stream.Dial(target, timeout)
		if err != nil {
			return err
		}
		c = newPeerConn(target, conn)
	}

	if timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(timeout))
	}

	reusable, err := c.exchange(kind, req, resp)
	if !reusable {
		c.conn.Close()
		return err
	}

	if n.IsShutdown() || !n.pool.put(c) {
		c.conn.Close()
	}
	return err
}

// connPool holds idle outbound connections, at most max per target.
type connPool struct {
	sync.Mutex
	idle map[string][]*peerConn
	max  int
}

func (p *connPool) take(target string) *peerConn {
	p.Lock()
	defer p.Unlock()

	conns := p.idle[target]
	if len(conns) == 0 {
		return nil
	}
	last := len(conns) - 1
	c := conns[last]
	conns[last] = nil
	p.idle[target] = conns[:last]
	return c
}

// put returns false if the target already has max idle connections.
func (p *connPool) put(c *peerConn) bool {
	p.Lock()
	defer p.Unlock()

	if len(p.idle[c.target]) >= p.max {
		return false
	}
	p.idle[c.target] = append(p.idle[c.target], c)
	return true
}

func (p *connPool) drain() {
	p.Lock()
	defer p.Unlock()

	for target, conns := range p.idle {
		for _, c := range conns {
			c.conn.Close()
		}
		delete(p.idle, target)
	}
}

// peerConn is an outbound connection with its buffered msgpack codec.
type peerConn struct {
	target string
	conn   net.Conn
	w      *bufio.Writer
	enc    *codec.Encoder
	dec    *codec.Decoder
}

func newPeerConn(target string, conn net.Conn) *peerConn {
	w := bufio.NewWriterSize(conn, bufSize)
	return &peerConn{
		target: target,
		conn:   conn,
		w:      w,
		enc:    codec.NewEncoder(w, msgpackHandle),
		dec:    codec.NewDecoder(bufio.NewReaderSize(conn, bufSize), msgpackHandle),
	}
}

// exchange writes one request frame and reads its reply into resp. The
// connection may be reused only when the whole reply was read, including
// replies that carry a remote error.
func (c *peerConn) exchange(kind byte, req, resp interface{}) (bool, error) {
	if err := c.w.WriteByte(kind); err != nil {
		return false, err
	}
	if err := c.enc.Encode(req); err != nil {
		return false, err
	}
	if err := c.w.Flush(); err != nil {
		return false, err
	}

	var remoteErr string
	if err := c.dec.Decode(&remoteErr); err != nil {
		return false, err
	}
	if err := c.dec.Decode(resp); err != nil {
		return false, err
	}

	if remoteErr != "" {
		return true, errors.New(remoteErr)
	}
	return true, nil
}

// Listen accepts inbound connections until the transport is closed.
func (n *NetworkTransport) Listen() {
	for {
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		go n.serve(conn)
	}
}

// serve answers the frames of one inbound connection in order.
func (n *NetworkTransport) serve(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)
	dec := codec.NewDecoder(r, msgpackHandle)
	enc := codec.NewEncoder(w, msgpackHandle)

	for {
		if err := n.serveFrame(r, dec, enc); err != nil {
			switch {
			case err == ErrTransportShutdown:
				n.logger.WithField("error", err).Warn("Dropping connection")
			case err != io.EOF:
				n.logger.WithField("error", err).Error("Failed to decode incoming command")
			}
			return
		}
		if err := w.Flush(); err != nil {
			n.logger.WithField("error", err).Error("Failed to flush response")
			return
		}
	}
}

// serveFrame hands one decoded command to the consumer and encodes its reply.
func (n *NetworkTransport) serveFrame(r *bufio.Reader, dec *codec.Decoder, enc *codec.Encoder) error {
	kind, err := r.ReadByte()
	if err != nil {
		return err
	}

	newCommand, ok := commandForFrame[kind]
	if !ok {
		return fmt.Errorf("unknown frame kind %d", kind)
	}
	cmd := newCommand()
	if err := dec.Decode(cmd); err != nil {
		return err
	}

	respCh := make(chan RPCResponse, 1)

	select {
	case n.consumeCh <- RPC{Command: cmd, RespChan: respCh}:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	var resp RPCResponse
	select {
	case resp = <-respCh:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	remoteErr := ""
	if resp.Error != nil {
		remoteErr = resp.Error.Error()
	}
	if err := enc.Encode(remoteErr); err != nil {
		return err
	}
	return enc.Encode(resp.Response)
}
