// Package csvlog appends completed trades to a CSV file, writing the
// header only on the file's first write.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"binance-trading-bot/internal/stats"
)

var header = []string{
	"Timestamp", "ID", "Side", "EntryPrice", "ExitPrice", "Size", "Leverage",
	"PnL", "PnL%", "Reason", "Duration(min)",
}

// Writer appends trade rows to a CSV file, adding the header exactly
// once when the file doesn't already exist or is empty.
type Writer struct {
	path string
}

// NewWriter constructs a CSV trade-log writer at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Append writes one row for the given trade, identified by id.
func (w *Writer) Append(id string, trade stats.Trade) error {
	needsHeader, err := w.needsHeader()
	if err != nil {
		return fmt.Errorf("csvlog: stat: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("csvlog: open: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("csvlog: write header: %w", err)
		}
	}

	duration := trade.ClosedAt.Sub(trade.OpenedAt).Minutes()
	row := []string{
		trade.ClosedAt.Format(time.RFC3339),
		id,
		trade.Side.String(),
		strconv.FormatFloat(trade.EntryPrice, 'f', -1, 64),
		strconv.FormatFloat(trade.ExitPrice, 'f', -1, 64),
		strconv.FormatFloat(trade.Size, 'f', -1, 64),
		strconv.FormatFloat(trade.Leverage, 'f', -1, 64),
		strconv.FormatFloat(trade.PnL, 'f', -1, 64),
		strconv.FormatFloat(trade.PnLPct, 'f', -1, 64),
		trade.Reason,
		strconv.FormatFloat(duration, 'f', 2, 64),
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("csvlog: write row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

func (w *Writer) needsHeader() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	return info.Size() == 0, nil
}
