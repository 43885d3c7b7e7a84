// Package export writes the emails table to CSV.
package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// CSV writes every row and column of the emails table to w. The header row is
// the column names in store order. NULL becomes an empty field. It returns the
// number of data rows written.
func CSV(ctx context.Context, conn *sqlx.DB, w io.Writer) (int, error) {
	rows, err := conn.QueryxContext(ctx, "SELECT * FROM emails ORDER BY rowid")
	if err != nil {
		return 0, fmt.Errorf("query emails: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("read columns: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	n := 0
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return n, fmt.Errorf("scan row: %w", err)
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = field(v)
		}
		if err := cw.Write(record); err != nil {
			return n, fmt.Errorf("write row: %w", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}

	cw.Flush()
	return n, cw.Error()
}

// ToFile writes the CSV export to path.
func ToFile(ctx context.Context, conn *sqlx.DB, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := CSV(ctx, conn, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	return n, err
}

func field(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case sql.RawBytes:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
