package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/fulfillment/internal/domain/offer"
)

const (
	progressEvery = 100_000
	maxLineSize   = 64 * 1024
)

// record is one NDJSON line. Either EndDate or ExpiresInDays sets the window.
type record struct {
	ID            int64
	DiscountType  string
	DiscountValue decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
	ExpiresInDays int
}

// fileResult holds the valid offers of one file in line order.
type fileResult struct {
	offers  []offer.Offer
	invalid int
}

// stats summarizes an ingest run.
type stats struct {
	valid      int
	invalid    int
	duplicates int
}

// parseLine decodes one NDJSON line.
func parseLine(line []byte) (record, error) {
	var rec record
	err := jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			rec.ID, err = d.Int64()
		case "discount_type":
			rec.DiscountType, err = d.Str()
		case "discount_value":
			rec.DiscountValue, err = decodeDecimal(d)
		case "start_date":
			rec.StartDate, err = decodeTime(d)
		case "end_date":
			rec.EndDate, err = decodeTime(d)
		case "expires_in_days":
			rec.ExpiresInDays, err = d.Int()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	return rec, err
}

// decodeDecimal accepts both 12.5 and "12.5".
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, s)
}

// toOffer validates rec through the entity constructors.
func (rec record) toOffer(now time.Time) (*offer.Offer, error) {
	dt := offer.DiscountType(rec.DiscountType)
	if rec.EndDate.IsZero() {
		return offer.NewExpiringIn(rec.ID, dt, rec.DiscountValue, rec.ExpiresInDays, now)
	}
	start := rec.StartDate
	if start.IsZero() {
		start = now
	}
	return offer.New(rec.ID, dt, rec.DiscountValue, start, rec.EndDate, now)
}

// readOffers parses and validates every line of r. Invalid lines are counted
// and skipped.
func readOffers(ctx context.Context, name string, r io.Reader, now time.Time) (fileResult, error) {
	var res fileResult

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	var lineNo int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		rec, err := parseLine(line)
		if err == nil {
			var o *offer.Offer
			if o, err = rec.toOffer(now); err == nil {
				res.offers = append(res.offers, *o)
			}
		}
		if err != nil {
			res.invalid++
			slog.Debug("skipping invalid line",
				slog.String("file", name),
				slog.Int("line", lineNo),
				slog.String("error", err.Error()),
			)
		}

		if lineNo%progressEvery == 0 {
			slog.Info("read progress", slog.String("file", name), slog.Int("lines", lineNo))
		}
	}
	if err := scanner.Err(); err != nil {
		return res, errors.Wrapf(err, "scan %s", name)
	}
	return res, nil
}

// readGzFile opens a gzip-compressed NDJSON file and reads its offers.
func readGzFile(ctx context.Context, path string, now time.Time) (fileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileResult{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fileResult{}, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return readOffers(ctx, path, gz, now)
}

// readFiles reads every file concurrently. Results keep the order of files.
func readFiles(ctx context.Context, files []string, now time.Time) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			res, err := readGzFile(ctx, path, now)
			if err != nil {
				return err
			}
			slog.Info("file read",
				slog.String("file", path),
				slog.Int("valid", len(res.offers)),
				slog.Int("invalid", res.invalid),
			)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// deduper finds repeated offer ids in two passes. The first pass feeds every
// id through the bloom filter; an id that tests positive is a candidate, either
// a real repeat or a false positive. Only candidates are tracked exactly in the
// second pass.
type deduper struct {
	filter *bloom.BloomFilter
	// candidates maps a candidate id to whether it has been emitted.
	candidates map[int64]bool
}

func newDeduper(expected uint, fpr float64) *deduper {
	return &deduper{
		filter:     bloom.NewWithEstimates(max(expected, 1), fpr),
		candidates: make(map[int64]bool),
	}
}

// observe is the first pass.
func (d *deduper) observe(id int64) {
	if d.filter.TestAndAdd(idKey(id)) {
		d.candidates[id] = false
	}
}

// firstSeen is the second pass: it reports whether id is emitted for the
// first time. Ids the filter never saw twice occur exactly once.
func (d *deduper) firstSeen(id int64) bool {
	emitted, ok := d.candidates[id]
	if !ok {
		return true
	}
	if emitted {
		return false
	}
	d.candidates[id] = true
	return true
}

func idKey(id int64) []byte {
	return strconv.AppendInt(nil, id, 10)
}

// merge flattens results in file order, keeping the first occurrence of
// every id.
func merge(results []fileResult, d *deduper) ([]offer.Offer, stats) {
	for _, r := range results {
		for _, o := range r.offers {
			d.observe(o.ID)
		}
	}

	var (
		out []offer.Offer
		st  stats
	)
	for _, r := range results {
		st.invalid += r.invalid
		for _, o := range r.offers {
			if !d.firstSeen(o.ID) {
				st.duplicates++
				continue
			}
			out = append(out, o)
		}
	}
	st.valid = len(out)
	slog.Info("dedup candidates", slog.Int("candidates", len(d.candidates)))
	return out, st
}
