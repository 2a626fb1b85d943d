// Package portfolio reads and writes trade envelopes as CSV.
package portfolio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"exposure-cube-lab/internal/domain"
)

// DateLayout is the date format of the Maturity column.
const DateLayout = "2006-01-02"

// Header is the column order written by Write. Read accepts the columns in
// any order; AvgPricingCost and Maturity are optional.
var Header = []string{"TradeId", "TradeType", "NettingSetId", "Maturity", "AvgPricingCost"}

// ErrInvalidPortfolio is returned for malformed portfolio files.
var ErrInvalidPortfolio = errors.New("invalid portfolio")

// Read parses a portfolio CSV with a header row.
func Read(r io.Reader) ([]domain.TradeEnvelope, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidPortfolio, err)
	}
	col := make(map[string]int, len(head))
	for i, name := range head {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"TradeId", "NettingSetId"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %s", ErrInvalidPortfolio, required)
		}
	}
	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var trades []domain.TradeEnvelope
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPortfolio, err)
		}

		t := domain.TradeEnvelope{
			TradeID:      get(rec, "TradeId"),
			TradeType:    get(rec, "TradeType"),
			NettingSetID: get(rec, "NettingSetId"),
		}
		if t.TradeID == "" {
			return nil, fmt.Errorf("%w: line %d: empty trade id", ErrInvalidPortfolio, line)
		}
		if seen[t.TradeID] {
			return nil, fmt.Errorf("%w: line %d: duplicate trade id %s", ErrInvalidPortfolio, line, t.TradeID)
		}
		seen[t.TradeID] = true

		if s := get(rec, "Maturity"); s != "" {
			if t.Maturity, err = time.Parse(DateLayout, s); err != nil {
				return nil, fmt.Errorf("%w: line %d: maturity %q", ErrInvalidPortfolio, line, s)
			}
		}
		if s := get(rec, "AvgPricingCost"); s != "" {
			if t.AvgPricingCost, err = strconv.ParseFloat(s, 64); err != nil || t.AvgPricingCost < 0 {
				return nil, fmt.Errorf("%w: line %d: pricing cost %q", ErrInvalidPortfolio, line, s)
			}
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// Write renders trades in Header order. A zero maturity is written empty.
func Write(w io.Writer, trades []domain.TradeEnvelope) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, t := range trades {
		maturity := ""
		if !t.Maturity.IsZero() {
			maturity = t.Maturity.Format(DateLayout)
		}
		rec := []string{
			t.TradeID,
			t.TradeType,
			t.NettingSetID,
			maturity,
			strconv.FormatFloat(t.AvgPricingCost, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Synthetic builds n demo trades spread round robin over nettingSets, with
// maturities stepping through the grid so jagged layouts see varied lengths.
func Synthetic(n int, nettingSets []string, dates []time.Time) []domain.TradeEnvelope {
	if len(nettingSets) == 0 {
		nettingSets = []string{"CPTY_A"}
	}
	types := []string{"Swap", "FxForward", "Swaption"}
	trades := make([]domain.TradeEnvelope, n)
	for i := range trades {
		t := domain.TradeEnvelope{
			TradeID:        fmt.Sprintf("TRADE_%04d", i+1),
			TradeType:      types[i%len(types)],
			NettingSetID:   nettingSets[i%len(nettingSets)],
			AvgPricingCost: float64(1 + i%len(types)),
		}
		if len(dates) > 0 && i%4 != 0 {
			t.Maturity = dates[(len(dates)-1)*(i%4)/3]
		}
		trades[i] = t
	}
	return trades
}
