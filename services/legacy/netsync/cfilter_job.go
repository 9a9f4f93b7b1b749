package netsync

import (
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/cfpeer/services/legacy/wire"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// CfilterJob fetches the filters of a contiguous run of blocks. A
// getcfilters is answered with one cfilter per block, in height order.
type CfilterJob struct {
	lifecycle

	// FilterType is the job's extra parameter.
	FilterType model.FilterType

	data model.Positions

	// requested holds the positions of the pending request still to be
	// answered, lowest first.
	requested model.Positions
}

// NewCfilterJob returns a job for positions, which must be contiguous and
// ordered by height.
func NewCfilterJob(filterType model.FilterType, positions model.Positions) (*CfilterJob, error) {
	if err := checkRun(positions); err != nil {
		return nil, err
	}

	j := &CfilterJob{
		FilterType: filterType,
		data:       append(model.Positions(nil), positions...),
	}
	j.init()

	return j, nil
}

// Remaining returns the positions not yet satisfied.
func (j *CfilterJob) Remaining() model.Positions {
	return append(model.Positions(nil), j.data...)
}

// Next builds the request for the next batch of outstanding positions.
func (j *CfilterJob) Next(now time.Time) (*wire.MsgGetCFilters, error) {
	if err := j.checkRequest("getcfilters"); err != nil {
		return nil, err
	}

	n := len(j.data)
	if n > wire.MaxGetCFiltersReqRange {
		n = wire.MaxGetCFiltersReqRange
	}

	j.requested = j.data[:n:n]

	start, err := safeconversion.Int32ToUint32(j.requested.First().Height)
	if err != nil {
		return nil, err
	}

	j.markRequested(now)

	return wire.NewMsgGetCFilters(j.FilterType, start, j.requested.Last().Hash), nil
}

// Handle verifies one cfilter. It must be for the next requested block,
// and when both filter headers involved are known the filter must hash to
// the committed header. A mismatch abandons the job.
func (j *CfilterJob) Handle(msg *wire.MsgCFilter, headers HeaderOracle, filters FilterOracle) (model.Position, error) {
	if !j.pending || len(j.requested) == 0 {
		return model.Position{}, unsolicited("getcfilters")
	}

	want := j.requested[0]

	if err := j.verify(msg, want, headers, filters); err != nil {
		j.Abandon()
		return model.Position{}, err
	}

	j.requested = j.requested[1:]
	j.data = j.data[1:]

	if len(j.requested) == 0 {
		j.pending = false
	}

	if len(j.data) == 0 {
		j.finish()
	}

	return want, nil
}

func (j *CfilterJob) verify(msg *wire.MsgCFilter, want model.Position, headers HeaderOracle, filters FilterOracle) error {
	if msg.FilterType != j.FilterType {
		return errors.NewProtocolViolationError("cfilter type %s, requested %s", msg.FilterType, j.FilterType)
	}

	if msg.BlockHash != want.Hash {
		return errors.NewProtocolViolationError("cfilter for %s, expected %s", msg.BlockHash, want)
	}

	committed, err := filters.LoadFilterHeader(j.FilterType, want.Hash)
	if err != nil {
		return nil
	}

	prev := chainhash.Hash{}

	if want.Height > 0 {
		header, _, err := headers.LoadHeader(want.Hash)
		if err != nil {
			return nil
		}

		if prev, err = filters.LoadFilterHeader(j.FilterType, header.PrevHash()); err != nil {
			return nil
		}
	}

	if got := model.NextFilterHeader(msg.FilterHash(), prev); got != committed {
		return errors.NewProtocolViolationError("cfilter for %s hashes to header %s, committed %s", want, got, committed)
	}

	return nil
}

// Reorg drops positions above parent. A pending request that covered any
// of them is dropped too, and its late answers are ignored.
func (j *CfilterJob) Reorg(parent model.Position) {
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
