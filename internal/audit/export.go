package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// WriteCSV renders timeline entries as CSV for export downloads.
func WriteCSV(rows []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "principal_id", "tenant_id", "action", "resource_id", "decision", "reason"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		resource := ""
		if row.ResourceID != uuid.Nil {
			resource = row.ResourceID.String()
		}
		record := []string{
			row.At.UTC().Format(time.RFC3339),
			strconv.FormatInt(row.PrincipalID, 10),
			row.TenantID.String(),
			row.Action,
			resource,
			row.Decision,
			row.Reason,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
