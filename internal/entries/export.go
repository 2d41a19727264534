package entries

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/BenGovier/RewardLabsStaging-sub001/internal/models"
	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/csvexport"
)

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// formatAnswers renders answers as "id: value" pairs in key order.
func formatAnswers(answers map[string]string) string {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+answers[k])
	}
	return strings.Join(parts, "; ")
}

func writeCSV(w io.Writer, rows []models.EntryExportRow) error {
	cw := csvexport.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.ID.String(),
			TicketNumber(r.ID),
			r.RaffleTitle,
			r.BusinessName,
			r.FirstName,
			r.LastName,
			r.Email,
			r.Phone,
			yesNo(r.AgreedToTerms),
			yesNo(r.MarketingConsent),
			formatAnswers(r.Answers),
			r.IPAddress,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// exportFilename names the download, e.g. entries-20260701.csv.
func exportFilename(now time.Time) string {
	return "entries-" + now.Format("20060102") + ".csv"
}
