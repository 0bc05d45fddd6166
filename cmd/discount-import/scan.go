package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// buildBloomFilters creates one bloom filter per file, concurrently. Codes a
// filter already held when added are collected as that file's suspects.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, []map[string]struct{}, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	suspects := make([]map[string]struct{}, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			repeated := make(map[string]struct{})
			var count uint64

			if err := streamCodes(ctx, f, func(code string, _ []string) {
				if filter.TestAndAddString(code) {
					repeated[code] = struct{}{}
				}
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			slog.Info("pass 1 complete",
				slog.Int("file", i+1),
				slog.Uint64("total_codes", count),
				slog.Int("suspects", len(repeated)),
			)

			filters[i] = filter
			suspects[i] = repeated
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return filters, suspects, nil
}

// findDuplicates re-streams every file and confirms bloom hits exactly. A
// code is counted when it is a suspect of its own file or another file's
// filter may hold it. Codes counted at least twice are duplicates.
func findDuplicates(ctx context.Context, files []string, filters []*bloom.BloomFilter, suspects []map[string]struct{}) (map[string]struct{}, error) {
	counts := make([]map[string]int, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			local := make(map[string]int)

			if err := streamCodes(ctx, f, func(code string, _ []string) {
				_, suspect := suspects[i][code]
				for j := 0; !suspect && j < len(filters); j++ {
					suspect = j != i && filters[j].TestString(code)
				}
				if suspect {
					local[code]++
				}
			}); err != nil {
				return errors.Wrapf(err, "scan file %d for duplicates", i+1)
			}

			slog.Info("pass 2 complete", slog.Int("file", i+1), slog.Int("candidates", len(local)))

			counts[i] = local
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]int)
	for _, local := range counts {
		for code, n := range local {
			merged[code] += n
		}
	}

	dups := make(map[string]struct{})
	for code, n := range merged {
		if n >= 2 {
			dups[code] = struct{}{}
		}
	}
	return dups, nil
}

// streamCodes opens a gzip-compressed CSV file and calls fn for each row
// with its trimmed code. A leading "code" header row is skipped.
func streamCodes(ctx context.Context, path string, fn func(code string, record []string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}

		code := strings.TrimSpace(record[0])
		if code == "" || (first && strings.EqualFold(code, "code")) {
			continue
		}
		fn(code, record)
	}
}
