package wire

import (
	"bytes"
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// MaxRejectReasonLen is the longest reject reason accepted.
const MaxRejectReasonLen = 111

// RejectCode represents a numeric value by which a remote peer indicates
// why a message was rejected.
type RejectCode uint8

const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete        RejectCode = 0x11
	RejectDuplicate       RejectCode = 0x12
	RejectNonstandard     RejectCode = 0x40
	RejectDust            RejectCode = 0x41
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint      RejectCode = 0x43
)

var rejectCodeStrings = map[RejectCode]string{
	RejectMalformed:       "REJECT_MALFORMED",
	RejectInvalid:         "REJECT_INVALID",
	RejectObsolete:        "REJECT_OBSOLETE",
	RejectDuplicate:       "REJECT_DUPLICATE",
	RejectNonstandard:     "REJECT_NONSTANDARD",
	RejectDust:            "REJECT_DUST",
	RejectInsufficientFee: "REJECT_INSUFFICIENTFEE",
	RejectCheckpoint:      "REJECT_CHECKPOINT",
}

func (code RejectCode) String() string {
	if s, ok := rejectCodeStrings[code]; ok {
		return s
	}

	return fmt.Sprintf("Unknown RejectCode (%d)", uint8(code))
}

// MsgReject tells the remote one of its messages was refused. Hash is only
// present on the wire when the rejected command is block or tx.
type MsgReject struct {
	Cmd    string
	Code   RejectCode
	Reason string
	Hash   chainhash.Hash
}

// NewMsgReject returns a reject for the given command.
func NewMsgReject(command string, code RejectCode, reason string) *MsgReject {
	return &MsgReject{Cmd: command, Code: code, Reason: reason}
}

func (msg *MsgReject) hasHash() bool {
	return msg.Cmd == CmdBlock.String() || msg.Cmd == CmdTx.String()
}

func (msg *MsgReject) String() string {
	s := fmt.Sprintf("cmd %s, code %s, reason %q", msg.Cmd, msg.Code, msg.Reason)
	if msg.hasHash() {
		s += ", hash " + msg.Hash.String()
	}

	return s
}

func (msg *MsgReject) Command() Command {
	return CmdReject
}

func (msg *MsgReject) encode(buf *bytes.Buffer) {
	writeVarBytes(buf, []byte(msg.Cmd))
	buf.WriteByte(byte(msg.Code))
	writeVarBytes(buf, []byte(msg.Reason))

	if msg.hasHash() {
		buf.Write(msg.Hash[:])
	}
}

func decodeReject(r *payloadReader) (*MsgReject, error) {
	var err error

	msg := &MsgReject{}

	if msg.Cmd, err = r.varString(CommandSize, "rejected command"); err != nil {
		return nil, err
	}

	code, err := r.readUint8("reject code")
	if err != nil {
		return nil, err
	}

	msg.Code = RejectCode(code)

	if msg.Reason, err = r.varString(MaxRejectReasonLen, "reject reason"); err != nil {
		return nil, err
	}

	if msg.hasHash() {
		if msg.Hash, err = r.readHash("rejected hash"); err != nil {
			return nil, err
		}
	}

	return msg, nil
}
