// Package tcptransport implements internal/transport.Transport over raw
// TCP, one message per connection with no length prefix: the writer sends
// and half-closes, the reader reads to EOF. Grounded 1:1 on the original
// node's backend/tcp transport.
package tcptransport

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/alsacoin/avalanche-node/internal/errors"
	"github.com/alsacoin/avalanche-node/internal/transport"
)

// AddressSize is the width of a serialized IPv4:port address: 4 bytes of
// IP plus 2 bytes of big-endian port.
const AddressSize = 6

// DefaultPort is used when no explicit port is configured.
const DefaultPort = 2019

// Transport is a transport.Transport backed by a TCP listener.
type Transport struct {
	local    net.TCPAddr
	listener net.Listener
}

// New binds a TCP listener at localAddr ("host:port" or "host" for
// DefaultPort).
func New(localAddr string) (*Transport, error) {
	addr, err := net.ResolveTCPAddr("tcp4", withDefaultPort(localAddr))
	if err != nil {
		return nil, errors.New(errors.ERR_INVALID_ADDRESS, "resolve %s: %v", localAddr, err)
	}

	listener, err := net.ListenTCP("tcp4", addr)
	if err != nil {
		return nil, errors.New(errors.ERR_IO, "listen on %s: %v", localAddr, err)
	}

	return &Transport{local: *addr, listener: listener}, nil
}

func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
}

// AddressToBytes packs a host:port string into the wire's 6-byte
// IPv4:port address encoding.
func AddressToBytes(addr string) ([]byte, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, errors.New(errors.ERR_INVALID_ADDRESS, "resolve %s: %v", addr, err)
	}

	ip4 := tcpAddr.IP.To4()
	if ip4 == nil {
		return nil, errors.New(errors.ERR_INVALID_ADDRESS, "%s is not IPv4", addr)
	}

	out := make([]byte, AddressSize)
	copy(out[:4], ip4)
	binary.BigEndian.PutUint16(out[4:], uint16(tcpAddr.Port))

	return out, nil
}

// AddressFromBytes unpacks the wire's 6-byte IPv4:port encoding.
func AddressFromBytes(b []byte) (string, error) {
	if len(b) != AddressSize {
		return "", errors.New(errors.ERR_INVALID_LENGTH, "address must be %d bytes, got %d", AddressSize, len(b))
	}

	ip := net.IPv4(b[0], b[1], b[2], b[3])
	port := binary.BigEndian.Uint16(b[4:])

	return (&net.TCPAddr{IP: ip, Port: int(port)}).String(), nil
}

func (t *Transport) LocalAddress() []byte {
	b, err := AddressToBytes(t.local.String())
	if err != nil {
		return nil
	}
	return b
}

// Send dials address, writes data, half-closes the write side so the peer
// sees EOF, then closes. One message per connection.
func (t *Transport) Send(address []byte, data []byte, timeout time.Duration) error {
	addr, err := AddressFromBytes(address)
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: timeout}

	conn, err := dialer.Dial("tcp4", addr)
	if err != nil {
		return errors.New(errors.ERR_IO, "dial %s: %v", addr, err)
	}
	defer conn.Close()

	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}

	if _, err := conn.Write(data); err != nil {
		return errors.New(errors.ERR_IO, "write to %s: %v", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.CloseWrite()
	}

	return nil
}

// Recv blocks accepting a single inbound connection and reads it to EOF.
func (t *Transport) Recv(timeout time.Duration) (transport.Message, error) {
	if timeout > 0 {
		if deadliner, ok := t.listener.(interface{ SetDeadline(time.Time) error }); ok {
			_ = deadliner.SetDeadline(time.Now().Add(timeout))
		}
	}

	conn, err := t.listener.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return transport.Message{}, errors.ErrTimeout
		}
		return transport.Message{}, errors.New(errors.ERR_IO, "accept: %v", err)
	}
	defer conn.Close()

	return readMessage(conn)
}

func readMessage(conn net.Conn) (transport.Message, error) {
	remote, err := AddressToBytes(conn.RemoteAddr().String())
	if err != nil {
		remote = nil
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return transport.Message{}, errors.New(errors.ERR_IO, "read: %v", err)
	}

	return transport.Message{Address: remote, Data: data}, nil
}

// Serve loops accepting connections and dispatching each to handler,
// writing back any response on the same connection, until an
// unrecoverable listener error occurs.
func (t *Transport) Serve(timeout time.Duration, handler transport.Handler) error {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return errors.New(errors.ERR_IO, "serve accept: %v", err)
		}

		go func(c net.Conn) {
			defer c.Close()

			if timeout > 0 {
				_ = c.SetDeadline(time.Now().Add(timeout))
			}

			msg, err := readMessage(c)
			if err != nil {
				return
			}

			resp, err := handler(msg)
			if err != nil || resp == nil {
				return
			}

			_, _ = c.Write(resp.Data)
		}(conn)
	}
}

// SendRecv dials address, writes data, half-closes the write side, then
// reads the peer's single response to EOF before closing.
func (t *Transport) SendRecv(address []byte, data []byte, timeout time.Duration) ([]byte, error) {
	addr, err := AddressFromBytes(address)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: timeout}

	conn, err := dialer.Dial("tcp4", addr)
	if err != nil {
		return nil, errors.New(errors.ERR_IO, "dial %s: %v", addr, err)
	}
	defer conn.Close()

	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	if _, err := conn.Write(data); err != nil {
		return nil, errors.New(errors.ERR_IO, "write to %s: %v", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.CloseWrite()
	}

	resp, err := io.ReadAll(conn)
	if err != nil {
		return nil, errors.New(errors.ERR_IO, "read response from %s: %v", addr, err)
	}

	return resp, nil
}

func (t *Transport) Close() error {
	if err := t.listener.Close(); err != nil {
		return errors.New(errors.ERR_IO, "close listener: %v", err)
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
