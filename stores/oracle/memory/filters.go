package memory

import (
	"github.com/bsv-blockchain/cfpeer/errors"
	"github.com/bsv-blockchain/cfpeer/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

func (o *Oracle) LoadFilter(filterType model.FilterType, hash chainhash.Hash) ([]byte, error) {
	filter, ok := o.filters.Get(filterKey{filterType, hash})
	if !ok {
		return nil, errors.NewNotFoundError("no %s filter for %s", filterType, hash)
	}

	return filter, nil
}

func (o *Oracle) LoadFilterHeader(filterType model.FilterType, hash chainhash.Hash) (chainhash.Hash, error) {
	header, ok := o.filterHeaders.Get(filterKey{filterType, hash})
	if !ok {
		return chainhash.Hash{}, errors.NewNotFoundError("no %s filter header for %s", filterType, hash)
	}

	return header, nil
}

func (o *Oracle) AddFilterHeaders(filterType model.FilterType, positions model.Positions, filterHashes, headers []chainhash.Hash) error {
	if len(positions) != len(headers) || len(positions) != len(filterHashes) {
		return errors.NewInvalidArgumentError("%d positions, %d filter hashes, %d headers", len(positions), len(filterHashes), len(headers))
	}

	for i, pos := range positions {
		o.filterHeaders.Set(filterKey{filterType, pos.Hash}, headers[i])
	}

	return nil
}

func (o *Oracle) AddFilter(filterType model.FilterType, hash chainhash.Hash, filter []byte) error {
	if _, err := o.LoadFilterHeader(filterType, hash); err != nil {
		return errors.NewStorageError("filter for %s arrived before its filter header", hash, err)
	}

	o.filters.Set(filterKey{filterType, hash}, filter)

	return nil
}

// MissingFilterHeaders returns the lowest contiguous run of best chain
// blocks without a filter header, at most limit long. The run starts right
// above a block whose filter header is known, so answers can be chained.
func (o *Oracle) MissingFilterHeaders(filterType model.FilterType, limit int) model.Positions {
	o.mu.Lock()
	defer o.mu.Unlock()

	has := func(h int32) bool {
		return o.filterHeaders.Exists(filterKey{filterType, o.best[h].hash})
	}

	start := o.headerCursor[filterType]
	for int(start) < len(o.best) && has(start) {
		start++
	}

	o.headerCursor[filterType] = start

	var missing model.Positions

	for h := start; int(h) < len(o.best) && len(missing) < limit && !has(h); h++ {
		missing = append(missing, o.best[h].position())
	}

	return missing
}

// MissingFilters returns the lowest contiguous run of best chain blocks
// whose filter header is known but whose filter is not.
func (o *Oracle) MissingFilters(filterType model.FilterType, limit int) model.Positions {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := o.filterCursor[filterType]
	for int(start) < len(o.best) && o.filters.Exists(filterKey{filterType, o.best[start].hash}) {
		start++
	}

	o.filterCursor[filterType] = start

	var missing model.Positions

	for h := start; int(h) < len(o.best) && len(missing) < limit; h++ {
		key := filterKey{filterType, o.best[h].hash}
		if o.filters.Exists(key) || !o.filterHeaders.Exists(key) {
			break
		}

		missing = append(missing, o.best[h].position())
	}

	return missing
}

// Stored counts what the oracle holds, over every branch and filter type.
type Stored struct {
	Filters       int
	FilterHeaders int
	Blocks        int
}

func (o *Oracle) Stored() Stored {
	return Stored{
		Filters:       o.filters.Length(),
		FilterHeaders: o.filterHeaders.Length(),
		Blocks:        o.blocks.Length(),
	}
}
