package main

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/callscore/internal/db"
	"github.com/sells-group/callscore/internal/model"
	"github.com/sells-group/callscore/internal/stats"
	"github.com/sells-group/callscore/internal/store"
)

var exportFlags struct {
	out   string
	limit int
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write archived calls to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		ctx := cmd.Context()
		archive, err := store.OpenArchive(ctx, cfg.Archive.Driver, cfg.Archive.DatabaseURL, db.PoolConfig{MaxConns: cfg.Archive.MaxConns})
		if err != nil {
			return eris.Wrap(err, "open archive")
		}
		defer archive.Close()

		recs, err := archive.List(ctx, exportFlags.limit)
		if err != nil {
			return err
		}

		loc, err := cfg.Stats.Location()
		if err != nil {
			return err
		}
		wb, err := buildWorkbook(recs, loc)
		if err != nil {
			return err
		}
		if err := wb.Save(exportFlags.out); err != nil {
			return eris.Wrapf(err, "save %s", exportFlags.out)
		}

		zap.L().Info("export complete", zap.String("out", exportFlags.out), zap.Int("calls", len(recs)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.out, "out", "calls.xlsx", "output workbook path")
	exportCmd.Flags().IntVar(&exportFlags.limit, "limit", 0, "newest calls to export (0 = all)")
	rootCmd.AddCommand(exportCmd)
}

var callHeaders = []string{
	"Call ID", "Timestamp", "Source", "Agent ID", "Duration (s)",
	"Outcome", "Sentiment", "Overall Score", "Primary Reason",
}

// buildWorkbook lays out a "Calls" sheet (one row per call, newest first,
// with every KPI column) and a "Summary" sheet aggregated over the same
// calls.
func buildWorkbook(recs []model.CallRecord, loc *time.Location) (*xlsx.File, error) {
	if loc == nil {
		loc = time.UTC
	}
	wb := xlsx.NewFile()

	calls, err := wb.AddSheet("Calls")
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add calls sheet")
	}
	header := calls.AddRow()
	for _, h := range callHeaders {
		header.AddCell().SetString(h)
	}
	for _, k := range model.KPIKeys {
		header.AddCell().SetString(k)
	}
	header.AddCell().SetString("Tags")

	overall := stats.NewOverall()
	for i := len(recs) - 1; i >= 0; i-- {
		overall = overall.Apply(recs[i].Analysis, recs[i].Metadata.DurationSeconds)
	}

	for _, rec := range recs {
		row := calls.AddRow()
		row.AddCell().SetString(rec.CallID)
		row.AddCell().SetString(rec.Timestamp.In(loc).Format(time.RFC3339))
		row.AddCell().SetString(string(rec.Source))
		row.AddCell().SetString(rec.Metadata.AgentID)
		row.AddCell().SetFloat(rec.Metadata.DurationSeconds)
		row.AddCell().SetString(string(rec.Analysis.CallOutcome))
		row.AddCell().SetString(string(rec.Analysis.InteractionSentiment))
		row.AddCell().SetFloat(rec.Analysis.OverallScore)
		row.AddCell().SetString(rec.Analysis.PrimaryReason)
		for _, k := range model.KPIKeys {
			row.AddCell().SetInt(rec.Analysis.KPIs[k])
		}
		row.AddCell().SetString(strings.Join(rec.Analysis.CallTags, ", "))
	}

	summary, err := wb.AddSheet("Summary")
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add summary sheet")
	}
	rep := overall.Report()
	addMetric(summary, "Total calls", float64(rep.TotalCalls))
	addMetric(summary, "Successful calls", float64(rep.SuccessfulCalls))
	addMetric(summary, "Failed calls", float64(rep.FailedCalls))
	addMetric(summary, "Success rate (%)", rep.SuccessRate)
	addMetric(summary, "Positive rate (%)", rep.PositiveRate)
	addMetric(summary, "Negative rate (%)", rep.NegativeRate)
	addMetric(summary, "Average call duration (s)", model.Round(rep.AverageCallDuration, 1))
	for _, k := range model.KPIKeys {
		if v, ok := rep.KPIAverages[k]; ok {
			addMetric(summary, k, v)
		}
	}
	return wb, nil
}

func addMetric(sheet *xlsx.Sheet, name string, v float64) {
	row := sheet.AddRow()
	row.AddCell().SetString(name)
	row.AddCell().SetFloat(v)
}
