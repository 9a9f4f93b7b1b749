package wire

import (
	"bytes"
	"fmt"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

const (
	// MaxInvPerMsg is the maximum number of inventory vectors in a single
	// inv, getdata or notfound message.
	MaxInvPerMsg = 50000

	// InvVectSize is the serialized size of an inventory vector.
	InvVectSize = 4 + chainhash.HashSize

	// InvWitnessFlag is set on inventory types that request witness data.
	InvWitnessFlag = 1 << 30
)

// InvType represents the allowed types of inventory vectors.
type InvType uint32

const (
	InvTypeError                InvType = 0
	InvTypeTx                   InvType = 1
	InvTypeBlock                InvType = 2
	InvTypeFilteredBlock        InvType = 3
	InvTypeCmpctBlock           InvType = 4
	InvTypeWitnessTx            InvType = InvTypeTx | InvWitnessFlag
	InvTypeWitnessBlock         InvType = InvTypeBlock | InvWitnessFlag
	InvTypeFilteredWitnessBlock InvType = InvTypeFilteredBlock | InvWitnessFlag
)

var invTypeNames = map[InvType]string{
	InvTypeError:                "ERROR",
	InvTypeTx:                   "MSG_TX",
	InvTypeBlock:                "MSG_BLOCK",
	InvTypeFilteredBlock:        "MSG_FILTERED_BLOCK",
	InvTypeCmpctBlock:           "MSG_CMPCT_BLOCK",
	InvTypeWitnessTx:            "MSG_WITNESS_TX",
	InvTypeWitnessBlock:         "MSG_WITNESS_BLOCK",
	InvTypeFilteredWitnessBlock: "MSG_FILTERED_WITNESS_BLOCK",
}

func (t InvType) String() string {
	if s, ok := invTypeNames[t]; ok {
		return s
	}

	return fmt.Sprintf("Unknown InvType (%d)", uint32(t))
}

// IsTx reports whether the inventory names a transaction.
func (t InvType) IsTx() bool {
	return t&^InvWitnessFlag == InvTypeTx
}

// IsBlock reports whether the inventory names a block in any of its forms.
func (t InvType) IsBlock() bool {
	switch t &^ InvWitnessFlag {
	case InvTypeBlock, InvTypeFilteredBlock, InvTypeCmpctBlock:
		return true
	default:
		return false
	}
}

// InvVect identifies a block or transaction by type and hash.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{Type: typ, Hash: *hash}
}

func (iv *InvVect) String() string {
	return iv.Type.String() + " " + iv.Hash.String()
}

func decodeInvList(r *payloadReader) ([]*InvVect, error) {
	n, err := r.count(MaxInvPerMsg, InvVectSize, "inventory vectors")
	if err != nil {
		return nil, err
	}

	list := make([]*InvVect, 0, n)

	for i := 0; i < n; i++ {
		typ, err := r.readUint32("inventory type")
		if err != nil {
			return nil, err
		}

		hash, err := r.readHash("inventory hash")
		if err != nil {
			return nil, err
		}

		list = append(list, &InvVect{Type: InvType(typ), Hash: hash})
	}

	return list, nil
}

func encodeInvList(buf *bytes.Buffer, list []*InvVect) {
	writeCount(buf, len(list))

	for _, iv := range list {
		writeUint32(buf, uint32(iv.Type))
		buf.Write(iv.Hash[:])
	}
}

// MsgInv announces known inventory.
type MsgInv struct {
	InvList []*InvVect
}

// NewMsgInv returns an empty inv message.
func NewMsgInv() *MsgInv {
	return &MsgInv{InvList: make([]*InvVect, 0, 8)}
}

// AddInvVect adds an inventory vector, failing once the message is full.
func (msg *MsgInv) AddInvVect(iv *InvVect) bool {
	if len(msg.InvList)+1 > MaxInvPerMsg {
		return false
	}

	msg.InvList = append(msg.InvList, iv)

	return true
}

func (msg *MsgInv) Command() Command {
	return CmdInv
}

func (msg *MsgInv) encode(buf *bytes.Buffer) {
	encodeInvList(buf, msg.InvList)
}

// MsgGetData requests inventory.
type MsgGetData struct {
	InvList []*InvVect
}

// NewMsgGetData returns an empty getdata message.
func NewMsgGetData() *MsgGetData {
	return &MsgGetData{InvList: make([]*InvVect, 0, 8)}
}

// AddInvVect adds an inventory vector, failing once the message is full.
func (msg *MsgGetData) AddInvVect(iv *InvVect) bool {
	if len(msg.InvList)+1 > MaxInvPerMsg {
		return false
	}

	msg.InvList = append(msg.InvList, iv)

	return true
}

func (msg *MsgGetData) Command() Command {
	return CmdGetData
}

func (msg *MsgGetData) encode(buf *bytes.Buffer) {
	encodeInvList(buf, msg.InvList)
}

// MsgNotFound answers a getdata for inventory the node does not have.
type MsgNotFound struct {
	InvList []*InvVect
}

// AddInvVect adds an inventory vector, failing once the message is full.
func (msg *MsgNotFound) AddInvVect(iv *InvVect) bool {
	if len(msg.InvList)+1 > MaxInvPerMsg {
		return false
	}

	msg.InvList = append(msg.InvList, iv)

	return true
}

func (msg *MsgNotFound) Command() Command {
	return CmdNotFound
}

func (msg *MsgNotFound) encode(buf *bytes.Buffer) {
	encodeInvList(buf, msg.InvList)
}
