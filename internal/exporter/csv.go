package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"leadpulse/internal/pipeline"
)

// Columns is the fixed export column order. Hit leads sort first in every
// export so the valuable rows sit at the top of the sheet.
var Columns = []string{
	"first_name",
	"last_name",
	"company",
	"job_title",
	"location",
	"email",
	"phone",
	"linkedin_url",
	"website",
	"hit_score",
	"is_hit",
	"activity_summary",
	"conversion_angle",
}

// utf8BOM makes Excel recognize the file as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV renders the leads as CSV with a UTF-8 BOM prefix and header
// row. Rows are ordered hits first, then by descending score.
func WriteCSV(w io.Writer, leads []pipeline.Lead) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, l := range sortForExport(leads) {
		if err := cw.Write(leadRecord(l)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename builds the canonical export file name for a job.
func Filename(jobID string, ts time.Time, ext string) string {
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("leads_final_%s_%s.%s", ts.Format("20060102_150405"), short, ext)
}

func leadRecord(l pipeline.Lead) []string {
	return []string{
		l.FirstName,
		l.LastName,
		l.Company,
		l.JobTitle,
		l.Location,
		l.Email,
		l.Phone,
		l.ProfileURL,
		l.Website,
		strconv.Itoa(l.HitScore),
		strconv.FormatBool(l.IsHit),
		l.ActivitySummary,
		l.ConversionAngle,
	}
}

// sortForExport returns a copy ordered hits first, then descending score,
// preserving scrape order inside equal groups.
func sortForExport(leads []pipeline.Lead) []pipeline.Lead {
	out := make([]pipeline.Lead, 0, len(leads))
	out = append(out, leads...)
	sort.SliceStable(out, func(i, k int) bool {
		if out[i].IsHit != out[k].IsHit {
			return out[i].IsHit
		}
		return out[i].HitScore > out[k].HitScore
	})
	return out
}
