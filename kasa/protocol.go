package kasa

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	// DefaultPort is the TCP port Kasa devices listen on.
	DefaultPort = 9999
	// DefaultTimeout bounds a full query round trip.
	DefaultTimeout = 5 * time.Second

	cipherSeed = 171
)

// Querier sends a single named command to a named service on the device and
// returns the structured reply. The device layer talks to the wire only
// through this, so tests can swap in a mock.
type Querier interface {
	Query(service string, command string, args any) (json.RawMessage, error)
	Host() string
}

// Protocol implements the TP-Link smart home wire protocol: a JSON envelope
// {"service":{"command":args}} encrypted with an XOR autokey cipher and sent
// over TCP with a 4-byte big-endian length prefix. The device closes the
// connection after each reply, so every query dials fresh.
type Protocol struct {
	Addr    string
	Port    int
	Timeout time.Duration
}

func NewProtocol(host string) *Protocol {
	return &Protocol{
		Addr:    host,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

func (p *Protocol) Host() string {
	return p.Addr
}

// Query performs one request/response round trip. args may be nil for
// commands that take no parameters. The reply envelope is unwrapped down to
// the command object and its err_code checked before it is returned.
func (p *Protocol) Query(service string, command string, args any) (json.RawMessage, error) {
	if args == nil {
		args = struct{}{}
	}
	request := map[string]map[string]any{
		service: {command: args},
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, &CommunicationError{Host: p.Addr, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	reply, err := p.exchange(payload)
	if err != nil {
		return nil, &CommunicationError{Host: p.Addr, Err: err}
	}

	return p.unwrap(reply, service, command)
}

func (p *Protocol) exchange(payload []byte) ([]byte, error) {
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(p.Addr, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], Encrypt(payload))
	if _, err := conn.Write(frame); err != nil {
		return nil, err
	}

	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, fmt.Errorf("reading reply header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("reading reply body: %w", err)
	}
	return Decrypt(body), nil
}

// unwrap digs the command reply out of the {"service":{"command":{...}}}
// envelope and surfaces a device-reported err_code as a CommunicationError.
func (p *Protocol) unwrap(reply []byte, service string, command string) (json.RawMessage, error) {
	var envelope map[string]map[string]json.RawMessage
	if err := json.Unmarshal(reply, &envelope); err != nil {
		return nil, &CommunicationError{Host: p.Addr, Err: fmt.Errorf("malformed reply: %w", err)}
	}
	inner, ok := envelope[service][command]
	if !ok {
		return nil, &CommunicationError{Host: p.Addr, Err: fmt.Errorf("reply missing %s.%s", service, command)}
	}

	var status struct {
		ErrCode int    `json:"err_code"`
		ErrMsg  string `json:"err_msg"`
	}
	if err := json.Unmarshal(inner, &status); err != nil {
		return nil, &CommunicationError{Host: p.Addr, Err: fmt.Errorf("malformed reply: %w", err)}
	}
	if status.ErrCode != 0 {
		return nil, &CommunicationError{Host: p.Addr, ErrCode: status.ErrCode, ErrMsg: status.ErrMsg}
	}
	return inner, nil
}

// Encrypt applies the XOR autokey cipher the devices expect. Each byte is
// XORed with the previous ciphertext byte, seeded with 171.
func Encrypt(plain []byte) []byte {
	out := make([]byte, len(plain))
	key := byte(cipherSeed)
	for i, b := range plain {
		key ^= b
		out[i] = key
	}
	return out
}

// Decrypt reverses Encrypt.
func Decrypt(cipher []byte) []byte {
	out := make([]byte, len(cipher))
	key := byte(cipherSeed)
	for i, b := range cipher {
		out[i] = key ^ b
		key = b
	}
	return out
}
