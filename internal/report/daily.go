package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"

	"sentiment-trader/internal/tradelog"
)

const totalSymbol = "TOTAL"

type dailyRow struct {
	Symbol         string  `csv:"symbol"`
	Runs           int     `csv:"runs"`
	BuyQty         int64   `csv:"buy_qty"`
	BuyAvg         float64 `csv:"buy_avg"`
	SellQty        int64   `csv:"sell_qty"`
	SellAvg        float64 `csv:"sell_avg"`
	RealizedPnL    float64 `csv:"realized_pnl"`
	Fees           float64 `csv:"fees"`
	GrossBuyValue  float64 `csv:"gross_buy_value"`
	GrossSellValue float64 `csv:"gross_sell_value"`
}

// SummarizeJournal aggregates one fills journal by symbol into outPath.
// It returns false without writing when the journal is missing or empty.
// Malformed lines are skipped.
func SummarizeJournal(journalPath, outPath string) (bool, error) {
	f, err := os.Open(journalPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	aggs := map[string]*dailyRow{}
	runs := map[string]map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e tradelog.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		row := aggs[e.Symbol]
		if row == nil {
			row = &dailyRow{Symbol: e.Symbol}
			aggs[e.Symbol] = row
			runs[e.Symbol] = map[string]struct{}{}
		}
		runs[e.Symbol][e.RunID] = struct{}{}
		row.Fees += e.Fee
		switch e.Side {
		case "BUY":
			row.BuyQty += e.Qty
			row.GrossBuyValue += float64(e.Qty) * e.Price
		case "SELL":
			row.SellQty += e.Qty
			row.GrossSellValue += float64(e.Qty) * e.Price
			row.RealizedPnL += e.NetPnL
		}
	}
	if err := sc.Err(); err != nil {
		return false, err
	}
	if len(aggs) == 0 {
		return false, nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]dailyRow, 0, len(keys)+1)
	total := dailyRow{Symbol: totalSymbol}
	for _, k := range keys {
		r := aggs[k]
		r.Runs = len(runs[k])
		if r.BuyQty > 0 {
			r.BuyAvg = r.GrossBuyValue / float64(r.BuyQty)
		}
		if r.SellQty > 0 {
			r.SellAvg = r.GrossSellValue / float64(r.SellQty)
		}
		rows = append(rows, *r)

		total.Runs += r.Runs
		total.RealizedPnL += r.RealizedPnL
		total.Fees += r.Fees
		total.GrossBuyValue += r.GrossBuyValue
		total.GrossSellValue += r.GrossSellValue
	}
	rows = append(rows, total)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return false, err
	}
	return true, writeFile(outPath, func(w io.Writer) error { return gocsv.Marshal(&rows, w) })
}
