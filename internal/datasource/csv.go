package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/pkg/utils"
)

// CSV implements Provider over a directory of <SYMBOL>.csv files in the
// Yahoo download layout: Date,Open,High,Low,Close,Adj Close,Volume. The
// Adj Close and Volume columns are optional.
type CSV struct {
	dir string
}

// NewCSV creates a CSV provider reading from dir.
func NewCSV(dir string) (*CSV, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: csv provider needs a directory", models.ErrInvalidArgument)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: csv directory: %v", models.ErrInvalidArgument, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrInvalidArgument, dir)
	}
	return &CSV{dir: dir}, nil
}

// Name returns the provider name.
func (c *CSV) Name() string { return "CSV" }

// FetchDaily reads <dir>/<SYMBOL>.csv.
func (c *CSV) FetchDaily(ctx context.Context, symbol string) (*equity.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym := utils.NormalizeTicker(symbol)
	if err := utils.ValidateSymbol(sym); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(c.dir, sym+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no csv file for %s in %s", ErrTickerNotFound, sym, c.dir)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDataUnavailable, err)
	}
	defer f.Close()

	bars, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.csv: %v", models.ErrDataUnavailable, sym, err)
	}
	return buildSeries("csv", sym, bars)
}

// ReadBars parses daily bars from CSV with a header row. Column names are
// matched case-insensitively; Date and Close are required.
func ReadBars(r io.Reader) ([]models.OHLCV, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, ok := col["date"]
	if !ok {
		return nil, fmt.Errorf("missing Date column")
	}
	closeCol, ok := col["close"]
	if !ok {
		return nil, fmt.Errorf("missing Close column")
	}

	var bars []models.OHLCV
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := utils.ParseDate(strings.TrimSpace(rec[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar := models.OHLCV{Timestamp: ts}
		if bar.Close, err = parseField(rec, closeCol); err != nil {
			return nil, fmt.Errorf("line %d: close: %w", line, err)
		}
		for name, dst := range map[string]*float64{
			"open": &bar.Open, "high": &bar.High, "low": &bar.Low, "adj close": &bar.AdjClose,
		} {
			if i, ok := col[name]; ok {
				if *dst, err = parseField(rec, i); err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
				}
			}
		}
		if i, ok := col["volume"]; ok {
			v, err := parseField(rec, i)
			if err != nil {
				return nil, fmt.Errorf("line %d: volume: %w", line, err)
			}
			bar.Volume = int64(v)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseField parses a numeric cell. Empty cells and Yahoo's "null" read
// as 0, which equity.New treats as missing.
func parseField(rec []string, i int) (float64, error) {
	if i >= len(rec) {
		return 0, nil
	}
	s := strings.TrimSpace(rec[i])
	if s == "" || strings.EqualFold(s, "null") {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
