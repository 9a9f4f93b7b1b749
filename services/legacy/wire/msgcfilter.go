package wire

import (
	"bytes"

	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

const (
	// MaxCFilterDataSize is the largest serialized filter accepted.
	MaxCFilterDataSize = 256 * 1024

	// MaxCFHeadersPerMsg is the maximum number of filter hashes in a single
	// cfheaders message.
	MaxCFHeadersPerMsg = 2000

	// MaxCFCheckptsPerMsg bounds the number of filter headers in cfcheckpt.
	MaxCFCheckptsPerMsg = 100000

	// MaxGetCFiltersReqRange is the largest height range a single
	// getcfilters may cover.
	MaxGetCFiltersReqRange = 1000

	// CFCheckptInterval is the block spacing of the headers in cfcheckpt.
	CFCheckptInterval = 1000
)

// FilterQuery is the body shared by getcfilters and getcfheaders.
type FilterQuery struct {
	FilterType  model.FilterType
	StartHeight uint32
	StopHash    chainhash.Hash
}

func (q *FilterQuery) encode(buf *bytes.Buffer) {
	buf.WriteByte(byte(q.FilterType))
	writeUint32(buf, q.StartHeight)
	buf.Write(q.StopHash[:])
}

func decodeFilterQuery(r *payloadReader) (FilterQuery, error) {
	var q FilterQuery

	if err := r.need(1+4+chainhash.HashSize, "filter query"); err != nil {
		return q, err
	}

	ft, _ := r.readUint8("filter type")
	q.FilterType = model.FilterType(ft)
	q.StartHeight, _ = r.readUint32("start height")
	q.StopHash, _ = r.readHash("stop hash")

	return q, nil
}

// MsgGetCFilters requests the filters of every block from StartHeight up to
// and including StopHash.
type MsgGetCFilters struct {
	FilterQuery
}

// NewMsgGetCFilters returns a getcfilters message.
func NewMsgGetCFilters(filterType model.FilterType, startHeight uint32, stopHash chainhash.Hash) *MsgGetCFilters {
	return &MsgGetCFilters{FilterQuery{FilterType: filterType, StartHeight: startHeight, StopHash: stopHash}}
}

func (msg *MsgGetCFilters) Command() Command {
	return CmdGetCFilters
}

// MsgGetCFHeaders requests the filter hashes of every block from
// StartHeight up to and including StopHash.
type MsgGetCFHeaders struct {
	FilterQuery
}

// NewMsgGetCFHeaders returns a getcfheaders message.
func NewMsgGetCFHeaders(filterType model.FilterType, startHeight uint32, stopHash chainhash.Hash) *MsgGetCFHeaders {
	return &MsgGetCFHeaders{FilterQuery{FilterType: filterType, StartHeight: startHeight, StopHash: stopHash}}
}

func (msg *MsgGetCFHeaders) Command() Command {
	return CmdGetCFHeaders
}

// MsgCFilter carries the filter of one block.
type MsgCFilter struct {
	FilterType model.FilterType
	BlockHash  chainhash.Hash
	Data       []byte
}

// FilterHash returns the hash committed to by cfheaders.
func (msg *MsgCFilter) FilterHash() chainhash.Hash {
	return model.FilterHash(msg.Data)
}

func (msg *MsgCFilter) Command() Command {
	return CmdCFilter
}

func (msg *MsgCFilter) encode(buf *bytes.Buffer) {
	buf.WriteByte(byte(msg.FilterType))
	buf.Write(msg.BlockHash[:])
	writeVarBytes(buf, msg.Data)
}

func decodeCFilter(r *payloadReader) (*MsgCFilter, error) {
	if err := r.need(1+chainhash.HashSize+1, "cfilter"); err != nil {
		return nil, err
	}

	msg := &MsgCFilter{}

	ft, _ := r.readUint8("filter type")
	msg.FilterType = model.FilterType(ft)
	msg.BlockHash, _ = r.readHash("block hash")

	data, err := r.varBytes(MaxCFilterDataSize, "filter")
	if err != nil {
		return nil, err
	}

	msg.Data = data

	return msg, nil
}

// MsgCFHeaders carries the filter hashes of a run of blocks ending at
// StopHash, and the filter header preceding the first of them.
type MsgCFHeaders struct {
	FilterType       model.FilterType
	StopHash         chainhash.Hash
	PrevFilterHeader chainhash.Hash
	FilterHashes     []*chainhash.Hash
}

// AddCFHash appends a filter hash, failing once the message is full.
func (msg *MsgCFHeaders) AddCFHash(hash *chainhash.Hash) bool {
	if len(msg.FilterHashes)+1 > MaxCFHeadersPerMsg {
		return false
	}

	msg.FilterHashes = append(msg.FilterHashes, hash)

	return true
}

// FilterHeaders chains the filter hashes onto PrevFilterHeader and returns
// the resulting filter header of every block, in order.
func (msg *MsgCFHeaders) FilterHeaders() []chainhash.Hash {
	headers := make([]chainhash.Hash, len(msg.FilterHashes))
	prev := msg.PrevFilterHeader

	for i, fh := range msg.FilterHashes {
		prev = model.NextFilterHeader(*fh, prev)
		headers[i] = prev
	}

	return headers
}

func (msg *MsgCFHeaders) Command() Command {
	return CmdCFHeaders
}

func (msg *MsgCFHeaders) encode(buf *bytes.Buffer) {
	buf.WriteByte(byte(msg.FilterType))
	buf.Write(msg.StopHash[:])
	buf.Write(msg.PrevFilterHeader[:])
	writeCount(buf, len(msg.FilterHashes))

	for _, fh := range msg.FilterHashes {
		buf.Write(fh[:])
	}
}

func decodeCFHeaders(r *payloadReader) (*MsgCFHeaders, error) {
	if err := r.need(1+2*chainhash.HashSize+1, "cfheaders"); err != nil {
		return nil, err
	}

	msg := &MsgCFHeaders{}

	ft, _ := r.readUint8("filter type")
	msg.FilterType = model.FilterType(ft)
	msg.StopHash, _ = r.readHash("stop hash")
	msg.PrevFilterHeader, _ = r.readHash("previous filter header")

	n, err := r.count(MaxCFHeadersPerMsg, chainhash.HashSize, "filter hashes")
	if err != nil {
		return nil, err
	}

	msg.FilterHashes = make([]*chainhash.Hash, 0, n)

	for i := 0; i < n; i++ {
		fh, err := r.readHash("filter hash")
		if err != nil {
			return nil, err
		}

		msg.FilterHashes = append(msg.FilterHashes, &fh)
	}

	return msg, nil
}

// MsgGetCFCheckpt requests evenly spaced filter headers up to StopHash.
type MsgGetCFCheckpt struct {
	FilterType model.FilterType
	StopHash   chainhash.Hash
}

func (msg *MsgGetCFCheckpt) Command() Command {
	return CmdGetCFCheckpt
}

func (msg *MsgGetCFCheckpt) encode(buf *bytes.Buffer) {
	buf.WriteByte(byte(msg.FilterType))
	buf.Write(msg.StopHash[:])
}

func decodeGetCFCheckpt(r *payloadReader) (*MsgGetCFCheckpt, error) {
	if err := r.need(1+chainhash.HashSize, "getcfcheckpt"); err != nil {
		return nil, err
	}

	msg := &MsgGetCFCheckpt{}

	ft, _ := r.readUint8("filter type")
	msg.FilterType = model.FilterType(ft)
	msg.StopHash, _ = r.readHash("stop hash")

	return msg, nil
}

// MsgCFCheckpt answers getcfcheckpt.
type MsgCFCheckpt struct {
	FilterType    model.FilterType
	StopHash      chainhash.Hash
	FilterHeaders []*chainhash.Hash
}

func (msg *MsgCFCheckpt) Command() Command {
	return CmdCFCheckpt
}

func (msg *MsgCFCheckpt) encode(buf *bytes.Buffer) {
	buf.WriteByte(byte(msg.FilterType))
	buf.Write(msg.StopHash[:])
	writeCount(buf, len(msg.FilterHeaders))

	for _, fh := range msg.FilterHeaders {
		buf.Write(fh[:])
	}
}

func decodeCFCheckpt(r *payloadReader) (*MsgCFCheckpt, error) {
	if err := r.need(1+chainhash.HashSize+1, "cfcheckpt"); err != nil {
		return nil, err
	}

	msg := &MsgCFCheckpt{}

	ft, _ := r.readUint8("filter type")
	msg.FilterType = model.FilterType(ft)
	msg.StopHash, _ = r.readHash("stop hash")

	n, err := r.count(MaxCFCheckptsPerMsg, chainhash.HashSize, "filter headers")
	if err != nil {
		return nil, err
	}

	msg.FilterHeaders = make([]*chainhash.Hash, 0, n)

	for i := 0; i < n; i++ {
		fh, err := r.readHash("filter header")
		if err != nil {
			return nil, err
		}

		msg.FilterHeaders = append(msg.FilterHeaders, &fh)
	}

	return msg, nil
}
