// Package ingest loads the operator coverage CSV into a store.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/store"
)

// DefaultBatch is the number of records handed to one Insert call.
const DefaultBatch = 1000

var columns = []string{"Operateur", "x", "y", "2G", "3G", "4G"}

type key struct {
	op   string
	x, y int
}

// Reader yields coverage records from a ';' separated file. Rows that fail
// to parse are skipped and counted; repeated (operator, x, y) keys keep the
// first row.
type Reader struct {
	r    *csv.Reader
	idx  [6]int
	seen map[key]struct{}

	Read       int
	Rejected   int
	Duplicates int
}

func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	rd := &Reader{r: cr, seen: map[key]struct{}{}}
	var missing []string
	for i, c := range columns {
		j, ok := colIdx[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		rd.idx[i] = j
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing expected column(s): %s", strings.Join(missing, ", "))
	}
	return rd, nil
}

// Next returns io.EOF once the input is exhausted.
func (rd *Reader) Next() (model.CoverageRecord, error) {
	for {
		row, err := rd.r.Read()
		if errors.Is(err, io.EOF) {
			return model.CoverageRecord{}, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			rd.Read++
			rd.Rejected++
			continue
		}
		if err != nil {
			return model.CoverageRecord{}, fmt.Errorf("read row: %w", err)
		}
		rd.Read++

		rec, ok := rd.parse(row)
		if !ok {
			rd.Rejected++
			continue
		}
		k := key{rec.OperatorCode, rec.X, rec.Y}
		if _, dup := rd.seen[k]; dup {
			rd.Duplicates++
			continue
		}
		rd.seen[k] = struct{}{}
		return rec, nil
	}
}

func (rd *Reader) parse(row []string) (model.CoverageRecord, bool) {
	field := func(i int) (string, bool) {
		j := rd.idx[i]
		if j >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[j]), true
	}

	op, ok := field(0)
	if !ok || op == "" {
		return model.CoverageRecord{}, false
	}
	var coords [2]int
	for i := range coords {
		s, ok := field(1 + i)
		if !ok {
			return model.CoverageRecord{}, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.CoverageRecord{}, false
		}
		coords[i] = int(f)
	}
	var flags [3]bool
	for i := range flags {
		s, ok := field(3 + i)
		if !ok {
			return model.CoverageRecord{}, false
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return model.CoverageRecord{}, false
		}
		flags[i] = n != 0
	}
	return model.CoverageRecord{
		OperatorCode: op,
		X:            coords[0],
		Y:            coords[1],
		Has2G:        flags[0],
		Has3G:        flags[1],
		Has4G:        flags[2],
	}, true
}

// ReadCSV reads every record of r into memory.
func ReadCSV(r io.Reader) ([]model.CoverageRecord, Stats, error) {
	rd, err := NewReader(r)
	if err != nil {
		return nil, Stats{}, err
	}
	var out []model.CoverageRecord
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rd.stats(), err
		}
		out = append(out, rec)
	}
	st := rd.stats()
	st.Loaded = len(out)
	return out, st, nil
}

type Stats struct {
	Read       int
	Loaded     int
	Duplicates int
	Rejected   int
	Partitions store.Counts
}

func (rd *Reader) stats() Stats {
	return Stats{Read: rd.Read, Duplicates: rd.Duplicates, Rejected: rd.Rejected, Partitions: store.Counts{}}
}

type Options struct {
	BatchSize int
	// Reset empties the store before loading.
	Reset  bool
	Logger *slog.Logger
}

// Load streams r into l in batches. A failed batch aborts the load; batches
// already written stay in the store.
func Load(ctx context.Context, r io.Reader, l store.Loader, opts Options) (Stats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatch
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	rd, err := NewReader(r)
	if err != nil {
		return Stats{}, err
	}
	if opts.Reset {
		if err := l.Reset(ctx); err != nil {
			return Stats{}, fmt.Errorf("reset store: %w", err)
		}
	}

	counts := store.Counts{}
	batch := make([]model.CoverageRecord, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		c, err := l.Insert(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert batch of %d: %w", len(batch), err)
		}
		counts.Add(c)
		log.DebugContext(ctx, "batch loaded", "records", len(batch), "total", counts.Total())
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return result(rd, counts), err
		}
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result(rd, counts), err
		}
		batch = append(batch, rec)
		if len(batch) == opts.BatchSize {
			if err := flush(); err != nil {
				return result(rd, counts), err
			}
		}
	}
	if err := flush(); err != nil {
		return result(rd, counts), err
	}

	st := result(rd, counts)
	log.InfoContext(ctx, "coverage data loaded",
		"read", st.Read, "loaded", st.Loaded, "duplicates", st.Duplicates, "rejected", st.Rejected)
	return st, nil
}

func result(rd *Reader, c store.Counts) Stats {
	st := rd.stats()
	st.Partitions = c
	st.Loaded = c.Total()
	return st
}
