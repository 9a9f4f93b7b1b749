package netsync

import (
	"testing"
	"time"

	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCfheaderJob(t *testing.T) {
	chain := newTestChain(t, 10)
	job, err := NewCfheaderJob(model.FilterTypeBasic, chain.positions(3, 9))
	require.NoError(t, err)

	req, err := job.Next(time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint32(3), req.StartHeight)
	assert.Equal(t, chain.position(9).Hash, req.StopHash)

	_, err = job.Next(time.Now())
	assert.True(t, errors.Is(err, errors.ErrRequestPending))

	batch, err := job.Handle(chain.cfheaders(chain.positions(3, 9)), chain, chain)
	require.NoError(t, err)
	assert.Len(t, batch.Headers, 7)
	assert.Equal(t, chain.fHeaders[chain.position(9).Hash], batch.Headers[6])

	assert.True(t, job.Finished())
	assert.Empty(t, job.Remaining())

	select {
	case <-job.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestCfheaderJobRejectsMisalignedResponses(t *testing.T) {
	chain := newTestChain(t, 10)

	mutations := map[string]func(job *CfheaderJob) error{
		"too many hashes": func(job *CfheaderJob) error {
			msg := chain.cfheaders(chain.positions(3, 6))
			extra := chainhash.Hash{1}
			msg.AddCFHash(&extra)

			_, err := job.Handle(msg, chain, chain)

			return err
		},
		"too few hashes": func(job *CfheaderJob) error {
			msg := chain.cfheaders(chain.positions(3, 6))
			msg.FilterHashes = msg.FilterHashes[:2]

			_, err := job.Handle(msg, chain, chain)

			return err
		},
		"wrong stop hash": func(job *CfheaderJob) error {
			msg := chain.cfheaders(chain.positions(3, 6))
			msg.StopHash = chain.position(5).Hash

			_, err := job.Handle(msg, chain, chain)

			return err
		},
		"wrong previous filter header": func(job *CfheaderJob) error {
			msg := chain.cfheaders(chain.positions(3, 6))
			msg.PrevFilterHeader = chainhash.Hash{9}

			_, err := job.Handle(msg, chain, chain)

			return err
		},
		"wrong filter type": func(job *CfheaderJob) error {
			msg := chain.cfheaders(chain.positions(3, 6))
			msg.FilterType = 1

			_, err := job.Handle(msg, chain, chain)

			return err
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			job, err := NewCfheaderJob(model.FilterTypeBasic, chain.positions(3, 6))
			require.NoError(t, err)

			_, err = job.Next(time.Now())
			require.NoError(t, err)

			err = mutate(job)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrProtocolViolation), err.Error())
			assert.True(t, job.Abandoned())
			assert.False(t, job.Finished())
		})
	}
}

func TestCfheaderJobUnknownPreviousHeaderAccepted(t *testing.T) {
	chain := newTestChain(t, 10)
	job, err := NewCfheaderJob(model.FilterTypeBasic, chain.positions(3, 6))
	require.NoError(t, err)

	_, err = job.Next(time.Now())
	require.NoError(t, err)

	msg := chain.cfheaders(chain.positions(3, 6))
	msg.PrevFilterHeader = chainhash.Hash{9}

	_, err = job.Handle(msg, chain, emptyFilters{chain})
	require.NoError(t, err)
	assert.True(t, job.Finished())
}

func TestCfheaderJobUnsolicited(t *testing.T) {
	chain := newTestChain(t, 5)
	job, err := NewCfheaderJob(model.FilterTypeBasic, chain.positions(1, 4))
	require.NoError(t, err)

	_, err = job.Handle(chain.cfheaders(chain.positions(1, 4)), chain, chain)
	require.Error(t, err)
	assert.True(t, IsUnsolicited(err))
	assert.False(t, job.Abandoned())
}

func TestCfheaderJobRejectsGaps(t *testing.T) {
	chain := newTestChain(t, 5)

	_, err := NewCfheaderJob(model.FilterTypeBasic, model.Positions{chain.position(1), chain.position(3)})
	require.Error(t, err)

	_, err = NewCfheaderJob(model.FilterTypeBasic, nil)
	require.Error(t, err)
}

func TestCfheaderJobReorgIdempotent(t *testing.T) {
	chain := newTestChain(t, 10)
	job, err := NewCfheaderJob(model.FilterTypeBasic, chain.positions(2, 9))
	require.NoError(t, err)

	_, err = job.Next(time.Now())
	require.NoError(t, err)

	job.Reorg(chain.position(5))
	once := job.Remaining()
	pendingOnce := job.Pending()

	job.Reorg(chain.position(5))
	assert.Equal(t, once, job.Remaining())
	assert.Equal(t, pendingOnce, job.Pending())

	assert.Equal(t, chain.positions(2, 5), once)
	assert.False(t, job.Pending())

	// the late answer to the dropped request is ignored
	_, err = job.Handle(chain.cfheaders(chain.positions(2, 9)), chain, chain)
	assert.True(t, IsUnsolicited(err))

	// reorg below the whole job abandons it
	job.Reorg(chain.position(1))
	assert.True(t, job.Abandoned())
	assert.Empty(t, job.Remaining())

	job.Reorg(chain.position(1))
	assert.True(t, job.Abandoned())
}
