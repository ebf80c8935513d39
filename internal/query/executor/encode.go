package executor

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteCSV writes the result rows as CSV: string values are always
// quoted with doubled-quote escaping, numbers are written bare, NULL is
// empty. No header row is emitted; the rowset is the payload.
func WriteCSV(w io.Writer, res *Result) error {
	var sb strings.Builder
	for _, row := range res.Rows {
		sb.Reset()
		for i, v := range row {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(csvField(v))
		}
		sb.WriteString("\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return fmt.Errorf("executor: write csv: %w", err)
		}
	}
	return nil
}

func csvField(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return `"` + strings.ReplaceAll(n, `"`, `""`) + `"`
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// WriteJSON writes the result as a single JSON object with the column
// list, declared types and rows as objects keyed by column name. Key
// order follows column order so repeated runs are byte-identical.
func WriteJSON(w io.Writer, res *Result) error {
	var sb strings.Builder
	sb.WriteString(`{"columns":`)
	if err := appendJSON(&sb, res.Columns); err != nil {
		return err
	}

	sb.WriteString(`,"types":[`)
	for i, t := range res.Types {
		if i > 0 {
			sb.WriteString(",")
		}
		if err := appendJSON(&sb, t.String()); err != nil {
			return err
		}
	}
	sb.WriteString("]")

	sb.WriteString(`,"rows":[`)
	for i, row := range res.Rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("{")
		for j, v := range row {
			if j > 0 {
				sb.WriteString(",")
			}
			if err := appendJSON(&sb, res.Columns[j]); err != nil {
				return err
			}
			sb.WriteString(":")
			if err := appendJSON(&sb, v); err != nil {
				return err
			}
		}
		sb.WriteString("}")
	}
	sb.WriteString("]}\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("executor: write json: %w", err)
	}
	return nil
}

func appendJSON(sb *strings.Builder, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("executor: encode json: %w", err)
	}
	sb.Write(b)
	return nil
}
