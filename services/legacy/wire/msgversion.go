package wire

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
)

const (
	// MaxUserAgentLen is the maximum allowed length for the user agent field.
	MaxUserAgentLen = 256

	// minVersionPayload covers every field up to and including the start
	// height with an empty user agent.
	minVersionPayload = 4 + 8 + 8 + netAddressSize + netAddressSize + 8 + 1 + 4
)

// MsgVersion opens the handshake. The relay flag is only encoded when
// ProtocolVersion is at least BIP0037Version.
type MsgVersion struct {
	ProtocolVersion int32
	Services        ServiceFlag
	Timestamp       time.Time
	AddrYou         NetAddress
	AddrMe          NetAddress
	Nonce           uint64
	UserAgent       string
	LastBlock       int32

	// DisableRelayTx asks the remote not to announce transactions.
	DisableRelayTx bool
}

// NewMsgVersion returns a version message with the current timestamp.
// Address timestamps are not part of the version encoding and are dropped.
func NewMsgVersion(me, you *NetAddress, nonce uint64, lastBlock int32) *MsgVersion {
	addrMe, addrYou := *me, *you
	addrMe.Timestamp = time.Time{}
	addrYou.Timestamp = time.Time{}

	return &MsgVersion{
		ProtocolVersion: int32(ProtocolVersion), //nolint:gosec // constant fits
		Services:        0,
		Timestamp:       time.Unix(time.Now().Unix(), 0),
		AddrYou:         addrYou,
		AddrMe:          addrMe,
		Nonce:           nonce,
		LastBlock:       lastBlock,
	}
}

// HasService reports whether the version advertises service.
func (msg *MsgVersion) HasService(service ServiceFlag) bool {
	return msg.Services&service == service
}

// AddService adds service to the advertised services.
func (msg *MsgVersion) AddService(service ServiceFlag) {
	msg.Services |= service
}

// AddUserAgent appends a BIP0014 formatted user agent component.
func (msg *MsgVersion) AddUserAgent(name, version string, comments ...string) error {
	ua := fmt.Sprintf("%s:%s", name, version)
	if len(comments) > 0 {
		ua = fmt.Sprintf("%s(%s)", ua, joinComments(comments))
	}

	ua = fmt.Sprintf("%s%s/", msg.UserAgent, ua)
	if len(msg.UserAgent) == 0 {
		ua = "/" + ua
	}

	if len(ua) > MaxUserAgentLen {
		return errors.NewInvalidArgumentError("user agent too long: %d > %d", len(ua), MaxUserAgentLen)
	}

	msg.UserAgent = ua

	return nil
}

func joinComments(comments []string) string {
	var b bytes.Buffer

	for i, c := range comments {
		if i > 0 {
			b.WriteString("; ")
		}

		b.WriteString(c)
	}

	return b.String()
}

func (msg *MsgVersion) Command() Command {
	return CmdVersion
}

func (msg *MsgVersion) encode(buf *bytes.Buffer) {
	writeUint32(buf, uint32(msg.ProtocolVersion)) //nolint:gosec // two's complement on the wire
	writeUint64(buf, uint64(msg.Services))
	writeUint64(buf, uint64(msg.Timestamp.Unix())) //nolint:gosec // two's complement on the wire
	msg.AddrYou.encode(buf, false)
	msg.AddrMe.encode(buf, false)
	writeUint64(buf, msg.Nonce)
	writeVarBytes(buf, []byte(msg.UserAgent))
	writeUint32(buf, uint32(msg.LastBlock)) //nolint:gosec // two's complement on the wire

	if msg.ProtocolVersion >= int32(BIP0037Version) { //nolint:gosec // constant fits
		if msg.DisableRelayTx {
			buf.WriteByte(0)
		} else {
			buf.WriteByte(1)
		}
	}
}

func decodeVersion(r *payloadReader) (*MsgVersion, error) {
	if err := r.need(minVersionPayload, "version payload"); err != nil {
		return nil, err
	}

	msg := &MsgVersion{}

	v, _ := r.readUint32("protocol version")
	msg.ProtocolVersion = int32(v) //nolint:gosec // two's complement on the wire

	services, _ := r.readUint64("services")
	msg.Services = ServiceFlag(services)

	ts, _ := r.readUint64("timestamp")
	msg.Timestamp = time.Unix(int64(ts), 0) //nolint:gosec // two's complement on the wire

	you, err := decodeNetAddress(r, false, "receiver address")
	if err != nil {
		return nil, err
	}

	me, err := decodeNetAddress(r, false, "sender address")
	if err != nil {
		return nil, err
	}

	msg.AddrYou = *you
	msg.AddrMe = *me

	if msg.Nonce, err = r.readUint64("nonce"); err != nil {
		return nil, err
	}

	if msg.UserAgent, err = r.varString(MaxUserAgentLen, "user agent"); err != nil {
		return nil, err
	}

	last, err := r.readUint32("start height")
	if err != nil {
		return nil, err
	}

	msg.LastBlock = int32(last) //nolint:gosec // two's complement on the wire

	// an absent relay flag means relay
	if msg.ProtocolVersion >= int32(BIP0037Version) && r.remaining() > 0 { //nolint:gosec // constant fits
		relay, _ := r.readUint8("relay")
		msg.DisableRelayTx = relay == 0
	}

	return msg, nil
}
