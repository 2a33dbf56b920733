package office

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

// convertSpreadsheet renders every sheet as tab-separated rows under a
// "## Sheet: name" heading. maxRows <= 0 keeps all rows.
func convertSpreadsheet(data []byte, maxRows int) (*extract.Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, common.InvalidInput("open workbook", err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	sheets := make([]map[string]any, 0)
	truncated := false
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, common.InvalidInput(fmt.Sprintf("read sheet %q", name), err)
		}
		cols := 0
		for _, r := range rows {
			cols = max(cols, len(trimRow(r)))
		}
		sheets = append(sheets, map[string]any{"name": name, "rows": len(rows), "columns": cols})

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## Sheet: %s\n", name)
		for i, r := range rows {
			if maxRows > 0 && i >= maxRows {
				truncated = true
				break
			}
			b.WriteString(strings.Join(trimRow(r), "\t"))
			b.WriteString("\n")
		}
	}

	res := extract.NewResult(strings.TrimRight(b.String(), "\n"))
	res.Set("converter", "excelize").
		Set("sheets", sheets).
		Set("sheet_count", len(sheets))
	if truncated {
		res.Set("truncated", true).Set("max_rows", maxRows)
	}
	return res, nil
}

func trimRow(r []string) []string {
	n := len(r)
	for n > 0 && strings.TrimSpace(r[n-1]) == "" {
		n--
	}
	return r[:n]
}
