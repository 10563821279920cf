package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Row is one result row keyed by column name
type Row map[string]any

// String returns the column as text; NULL and missing columns become ""
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// NullString returns nil for NULL or missing columns
func (r Row) NullString(col string) *string {
	if r[col] == nil {
		return nil
	}
	s := r.String(col)
	return &s
}

// Int64 returns the column as an integer; NULL and unparsable values become 0
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	}
	return 0
}

// Bool reports whether the column holds a non-zero integer
func (r Row) Bool(col string) bool {
	return r.Int64(col) != 0
}

// Time returns the column as a timestamp. The driver already converts columns
// declared DATETIME or TIMESTAMP; text values are parsed as RFC 3339 or SQLite's
// "YYYY-MM-DD HH:MM:SS" form.
func (r Row) Time(col string) (time.Time, error) {
	switch v := r[col].(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	case nil:
		return time.Time{}, fmt.Errorf("column %s is NULL", col)
	}
	return time.Time{}, fmt.Errorf("column %s holds %T, not a timestamp", col, r[col])
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// scanRows reads up to limit rows (0 means all) into maps
func scanRows(rows *sql.Rows, limit int) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)

		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, rows.Err()
}
