package netsync

import (
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// CfheaderJob fetches the filter headers of a contiguous run of blocks.
type CfheaderJob struct {
	lifecycle

	// FilterType is the job's extra parameter.
	FilterType model.FilterType

	data      model.Positions
	requested model.Positions
}

// CfheaderBatch is a verified cfheaders response ready to be stored.
type CfheaderBatch struct {
	Positions    model.Positions
	FilterHashes []chainhash.Hash
	Headers      []chainhash.Hash
}

// NewCfheaderJob returns a job for positions, which must be contiguous and
// ordered by height.
func NewCfheaderJob(filterType model.FilterType, positions model.Positions) (*CfheaderJob, error) {
	if err := checkRun(positions); err != nil {
		return nil, err
	}

	j := &CfheaderJob{
		FilterType: filterType,
		data:       append(model.Positions(nil), positions...),
	}
	j.init()

	return j, nil
}

func checkRun(positions model.Positions) error {
	if len(positions) == 0 {
		return errors.NewInvalidArgumentError("job has no positions")
	}

	if !positions.Contiguous() {
		return errors.NewInvalidArgumentError("job positions %s..%s are not contiguous", positions.First(), positions.Last())
	}

	if positions.First().Height < 0 {
		return errors.NewInvalidArgumentError("job starts at negative height %d", positions.First().Height)
	}

	return nil
}

// Remaining returns the positions not yet satisfied.
func (j *CfheaderJob) Remaining() model.Positions {
	return append(model.Positions(nil), j.data...)
}

// Next builds the request for the next batch of outstanding positions.
func (j *CfheaderJob) Next(now time.Time) (*wire.MsgGetCFHeaders, error) {
	if err := j.checkRequest("getcfheaders"); err != nil {
		return nil, err
	}

	n := len(j.data)
	if n > wire.MaxCFHeadersPerMsg {
		n = wire.MaxCFHeadersPerMsg
	}

	j.requested = j.data[:n:n]

	start, err := safeconversion.Int32ToUint32(j.requested.First().Height)
	if err != nil {
		return nil, err
	}

	j.markRequested(now)

	return wire.NewMsgGetCFHeaders(j.FilterType, start, j.requested.Last().Hash), nil
}

// Handle verifies a cfheaders response against the pending request. The
// filter hashes must map one to one, in order, onto the ancestors of the
// requested stop hash, and must chain from the previous filter header when
// the filter oracle knows it. Any mismatch abandons the job.
func (j *CfheaderJob) Handle(msg *wire.MsgCFHeaders, headers HeaderOracle, filters FilterOracle) (*CfheaderBatch, error) {
	if !j.pending {
		return nil, unsolicited("getcfheaders")
	}

	batch, err := j.verify(msg, headers, filters)
	if err != nil {
		j.Abandon()
		return nil, err
	}

	j.data = j.data[len(j.requested):]
	j.requested = nil
	j.pending = false

	if len(j.data) == 0 {
		j.finish()
	}

	return batch, nil
}

func (j *CfheaderJob) verify(msg *wire.MsgCFHeaders, headers HeaderOracle, filters FilterOracle) (*CfheaderBatch, error) {
	req := j.requested

	if msg.FilterType != j.FilterType {
		return nil, errors.NewProtocolViolationError("cfheaders filter type %s, requested %s", msg.FilterType, j.FilterType)
	}

	if msg.StopHash != req.Last().Hash {
		return nil, errors.NewProtocolViolationError("cfheaders stop hash %s, requested %s", msg.StopHash, req.Last().Hash)
	}

	if len(msg.FilterHashes) > len(req) {
		return nil, errors.NewProtocolViolationError("cfheaders carries %d filter hashes for %d requested blocks", len(msg.FilterHashes), len(req))
	}

	ancestors, err := headers.Ancestors(req.First().Height, msg.StopHash)
	if err != nil {
		return nil, errors.NewProtocolViolationError("cannot resolve ancestors of cfheaders stop hash %s", msg.StopHash, err)
	}

	if len(ancestors) != len(msg.FilterHashes) {
		return nil, errors.NewProtocolViolationError("cfheaders carries %d filter hashes, chain has %d blocks", len(msg.FilterHashes), len(ancestors))
	}

	for i, p := range ancestors {
		if p != req[i] {
			return nil, errors.NewProtocolViolationError("cfheaders position %d is %s, requested %s", i, p, req[i])
		}
	}

	if req.First().Height > 0 {
		first, _, err := headers.LoadHeader(req.First().Hash)
		if err == nil {
			known, err := filters.LoadFilterHeader(j.FilterType, first.PrevHash())
			if err == nil && known != msg.PrevFilterHeader {
				return nil, errors.NewProtocolViolationError("cfheaders previous filter header %s, expected %s", msg.PrevFilterHeader, known)
			}
		}
	}

	batch := &CfheaderBatch{
		Positions:    append(model.Positions(nil), req...),
		FilterHashes: make([]chainhash.Hash, len(msg.FilterHashes)),
		Headers:      msg.FilterHeaders(),
	}

	for i, fh := range msg.FilterHashes {
		batch.FilterHashes[i] = *fh
	}

	return batch, nil
}

// Reorg drops positions above parent. A pending request that covered any
// of them is dropped too, and its late answer is ignored.
func (j *CfheaderJob) Reorg(parent model.Position) {
	data, dropped := truncateAbove(j.data, parent)
	if !dropped {
		return
	}

	j.data = data

	if _, cut := truncateAbove(j.requested, parent); cut {
		j.requested = nil
		j.pending = false
	}

	if len(j.data) == 0 {
		j.Abandon()
	}
}
