package wire

import (
	"bytes"
	"net"
	"strconv"
	"time"
)

const (
	// netAddressSize is a network address without its timestamp, as carried
	// in the version message.
	netAddressSize = 26

	// timestampedNetAddressSize is a network address as carried in addr.
	timestampedNetAddressSize = 30
)

// NetAddress describes a peer on the network.
type NetAddress struct {
	// Timestamp is the last time the address was seen. It is not part of
	// the version message encoding.
	Timestamp time.Time

	Services ServiceFlag

	// IP is always kept in its 16-byte form.
	IP   net.IP
	Port uint16
}

// NewNetAddressIPPort returns an address using the given ip, port and services.
func NewNetAddressIPPort(ip net.IP, port uint16, services ServiceFlag) *NetAddress {
	return &NetAddress{
		Timestamp: time.Unix(time.Now().Unix(), 0),
		Services:  services,
		IP:        ip,
		Port:      port,
	}
}

// NewNetAddress builds a NetAddress from a host:port string. Hosts that are
// not literal IPs are recorded as the unspecified address.
func NewNetAddress(addr string, services ServiceFlag) *NetAddress {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return NewNetAddressIPPort(net.IPv4zero, 0, services)
	}

	port, _ := strconv.ParseUint(portStr, 10, 16)

	ip := net.ParseIP(host)
	if ip == nil {
		ip = net.IPv4zero
	}

	return NewNetAddressIPPort(ip, uint16(port), services)
}

// String returns the address in host:port form.
func (na *NetAddress) String() string {
	return net.JoinHostPort(na.IP.String(), strconv.FormatUint(uint64(na.Port), 10))
}

func (na *NetAddress) encode(buf *bytes.Buffer, withTimestamp bool) {
	if withTimestamp {
		writeUint32(buf, uint32(na.Timestamp.Unix())) //nolint:gosec // wire format is 32-bit
	}

	writeUint64(buf, uint64(na.Services))

	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}

	buf.Write(ip[:])
	writeUint16BE(buf, na.Port)
}

func decodeNetAddress(r *payloadReader, withTimestamp bool, what string) (*NetAddress, error) {
	na := &NetAddress{}

	if withTimestamp {
		ts, err := r.readUint32(what + " timestamp")
		if err != nil {
			return nil, err
		}

		na.Timestamp = time.Unix(int64(ts), 0)
	}

	services, err := r.readUint64(what + " services")
	if err != nil {
		return nil, err
	}

	ip, err := r.readBytes(16, what+" ip")
	if err != nil {
		return nil, err
	}

	port, err := r.readUint16BE(what + " port")
	if err != nil {
		return nil, err
	}

	na.Services = ServiceFlag(services)
	na.IP = net.IP(ip)
	na.Port = port

	return na, nil
}
