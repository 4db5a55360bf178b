package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pricestalk/pricestalk/internal/types"
)

// WriteCSV writes observations in the canonical column order with a header
// row. Absent optional fields serialize as empty cells.
func WriteCSV(w io.Writer, obs []*types.Observation) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(types.ExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, o := range obs {
		rating := ""
		if o.Rating != nil {
			rating = strconv.FormatFloat(*o.Rating, 'f', -1, 64)
		}
		reviews := ""
		if o.ReviewsCount != nil {
			reviews = strconv.Itoa(*o.ReviewsCount)
		}

		record := []string{
			o.ProductName,
			strconv.FormatFloat(o.Price, 'f', 2, 64),
			o.Currency,
			string(o.Website),
			o.URL,
			o.ProductID,
			o.Availability,
			rating,
			reviews,
			o.SearchTerm,
			o.Timestamp.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes observations as an indented JSON array.
func WriteJSON(w io.Writer, obs []*types.Observation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(obs)
}

// ToFile writes observations to path in the given format ("csv" or "json"),
// creating parent directories as needed.
func ToFile(path, format string, obs []*types.Observation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	switch format {
	case "csv":
		return WriteCSV(f, obs)
	case "json":
		return WriteJSON(f, obs)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
