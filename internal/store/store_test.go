package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/config"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
)

func TestOpen_UnknownDriver(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := Open(context.Background(), "nope", config.Config{}, log); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpen_WrapsFactoryError(t *testing.T) {
	boom := errors.New("boom")
	Register("failing-test", func(context.Context, config.Config, *slog.Logger) (Store, error) {
		return nil, boom
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := Open(context.Background(), "failing-test", config.Config{}, log); !errors.Is(err, boom) {
		t.Fatalf("err=%v want wrapped boom", err)
	}
}

func TestSplit_UsesStorageRanges(t *testing.T) {
	recs := []model.CoverageRecord{
		{OperatorCode: "a", X: 50000},
		{OperatorCode: "b", X: 102980},
		{OperatorCode: "c", X: 400000},
		{OperatorCode: "d", X: 1240585},
		{OperatorCode: "e", X: 1240586},
	}
	got := Split(partition.Lambert93(), recs)
	want := map[partition.ID][]string{
		partition.Default: {"a", "e"},
		partition.P1:      {"b"},
		partition.P2:      {"c"},
		partition.P3:      {"d"},
	}
	for id, codes := range want {
		var have []string
		for _, r := range got[id] {
			have = append(have, r.OperatorCode)
		}
		if !reflect.DeepEqual(have, codes) {
			t.Fatalf("%s: got=%v want=%v", id, have, codes)
		}
	}
}

func TestIntBounds(t *testing.T) {
	lo, hi := IntBounds(model.Range{Min: 649469.02, Max: 655469.02})
	if lo != 649469 || hi != 655470 {
		t.Fatalf("lo=%d hi=%d", lo, hi)
	}
}

func TestCounts(t *testing.T) {
	c := Counts{partition.P2: 3}
	c.Add(Counts{partition.P1: 1, partition.P2: 2, partition.P3: 0})
	if c.Total() != 6 {
		t.Fatalf("total=%d", c.Total())
	}
	if ids := c.IDs(); !reflect.DeepEqual(ids, []partition.ID{partition.P1, partition.P2}) {
		t.Fatalf("ids=%v", ids)
	}
}

func TestCheckPartition(t *testing.T) {
	l := partition.Lambert93()
	if err := CheckPartition(l, partition.Default); err != nil {
		t.Fatalf("default must be queryable: %v", err)
	}
	if err := CheckPartition(l, "p9"); !errors.Is(err, ErrUnknownPartition) {
		t.Fatalf("err=%v", err)
	}
}
