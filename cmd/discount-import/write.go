package main

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/discount"
)

// codeStore is the part of the discount repository the import writes through.
type codeStore interface {
	Existing(ctx context.Context, codes []string) ([]string, error)
	Upsert(ctx context.Context, c *discount.Code) (bool, error)
}

// discardStore reports nothing as existing and drops every write.
type discardStore struct{}

func (discardStore) Existing(context.Context, []string) ([]string, error) { return nil, nil }

func (discardStore) Upsert(context.Context, *discount.Code) (bool, error) { return true, nil }

type writeConfig struct {
	batchSize int
	overwrite bool
	dryRun    bool
}

type writeStats struct {
	rows       int
	invalid    int
	duplicates int
	existing   int
	inserted   int
	updated    int
}

// writeCodes streams the files in order and writes every valid code once.
// Later occurrences of a duplicate code are counted and dropped.
func writeCodes(ctx context.Context, files []string, dups map[string]struct{}, store codeStore, cfg writeConfig) (writeStats, error) {
	var (
		st    writeStats
		seen  = make(map[string]struct{}, len(dups))
		batch = make([]discount.Form, 0, cfg.batchSize)
		now   = time.Now()
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := writeBatch(ctx, store, batch, cfg.overwrite, now, &st)
		batch = batch[:0]
		return err
	}

	for i, f := range files {
		var flushErr error
		err := streamCodes(ctx, f, func(code string, record []string) {
			if flushErr != nil {
				return
			}
			st.rows++

			form, err := parseRecord(code, record)
			if err == nil {
				err = form.Validate(now)
			}
			if err != nil {
				st.invalid++
				slog.Warn("skipping invalid row",
					slog.Int("file", i+1),
					slog.String("code", code),
					slog.String("error", err.Error()),
				)
				return
			}

			if _, dup := dups[code]; dup {
				if _, ok := seen[code]; ok {
					st.duplicates++
					return
				}
				seen[code] = struct{}{}
			}

			batch = append(batch, form)
			if len(batch) >= cfg.batchSize {
				flushErr = flush()
			}
		})
		if err != nil {
			return st, err
		}
		if flushErr != nil {
			return st, flushErr
		}
	}

	return st, flush()
}

func writeBatch(ctx context.Context, store codeStore, batch []discount.Form, overwrite bool, now time.Time, st *writeStats) error {
	existing := make(map[string]struct{})
	if !overwrite {
		codes := make([]string, len(batch))
		for i, f := range batch {
			codes[i] = f.Code
		}
		found, err := store.Existing(ctx, codes)
		if err != nil {
			return errors.Wrap(err, "check existing codes")
		}
		for _, c := range found {
			existing[c] = struct{}{}
		}
	}

	for _, f := range batch {
		if _, ok := existing[f.Code]; ok {
			st.existing++
			continue
		}
		c := &discount.Code{
			ID:             uuid.New().String(),
			Code:           f.Code,
			DiscountAmount: f.DiscountAmount,
			DiscountType:   f.DiscountType,
			IsActive:       true,
			AllProducts:    true,
			Limit:          f.Limit,
			CreatedAt:      now,
		}
		inserted, err := store.Upsert(ctx, c)
		if err != nil {
			return err
		}
		if inserted {
			st.inserted++
		} else {
			st.updated++
		}
	}
	return nil
}

// parseRecord reads code,type,amount[,limit]. Imported codes apply to all
// products.
func parseRecord(code string, record []string) (discount.Form, error) {
	if len(record) < 3 {
		return discount.Form{}, errors.Errorf("expected at least 3 fields, got %d", len(record))
	}
	form := discount.Form{
		Code:         code,
		DiscountType: discount.Type(strings.ToUpper(strings.TrimSpace(record[1]))),
		AllProducts:  true,
	}

	amount, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil {
		return discount.Form{}, errors.Wrap(err, "parse amount")
	}
	form.DiscountAmount = amount

	if len(record) > 3 {
		if s := strings.TrimSpace(record[3]); s != "" {
			limit, err := strconv.Atoi(s)
			if err != nil {
				return discount.Form{}, errors.Wrap(err, "parse limit")
			}
			form.Limit = &limit
		}
	}
	return form, nil
}
