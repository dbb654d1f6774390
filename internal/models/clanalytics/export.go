package clanalytics

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Formats d'export
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatExcel = "excel"
)

// ExportFileName qr-analytics-<from>-<to>.<ext>, excel est écrit en csv
func ExportFileName(format string, r DateRange) string {
	ext := format
	if format == FormatExcel {
		ext = FormatCSV
	}
	return fmt.Sprintf("qr-analytics-%s-%s.%s", r.From, r.To, ext)
}

// Export écrit le rapport de la période dans dir et renvoie le chemin du fichier
func (as *AnalyticsService) Export(ctx context.Context, dir, format, from, to string) (string, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatJSON && format != FormatExcel {
		return "", fmt.Errorf("format d'export inconnu %q", format)
	}

	data, err := as.GetAnalyticsData(ctx, from, to)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, ExportFileName(format, data.DateRange))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := WriteExport(f, format, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteExport sérialise data au format demandé
func WriteExport(w io.Writer, format string, data *Data) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatExcel:
		// BOM et point-virgule pour Excel
		if _, err := io.WriteString(w, "\uFEFF"); err != nil {
			return err
		}
		return writeCSV(w, ';', data)
	default:
		return writeCSV(w, ',', data)
	}
}

func metricLabel(key string) string {
	label := strings.ReplaceAll(key, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

func writeCSV(w io.Writer, sep rune, data *Data) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	s := data.Summary
	rows := [][]string{
		{"Metric", "Value"},
		{metricLabel("total_scans"), strconv.FormatInt(s.TotalScans, 10)},
		{metricLabel("unique_scans"), strconv.FormatInt(s.UniqueScans, 10)},
		{metricLabel("total_conversions"), strconv.FormatInt(s.TotalConversions, 10)},
		{metricLabel("total_revenue"), strconv.FormatFloat(s.TotalRevenue, 'f', 2, 64)},
		{metricLabel("conversion_rate"), strconv.FormatFloat(s.ConversionRate, 'f', 2, 64)},
		{},
		{"Date", "Scans"},
	}
	for _, d := range data.DailyScans {
		rows = append(rows, []string{d.Date, strconv.FormatInt(d.Scans, 10)})
	}

	rows = append(rows, []string{}, []string{"QR Code", "Product", "Scans", "Conversions", "Revenue"})
	for _, q := range data.TopQRCodes {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(q.ID), 10),
			q.ProductName,
			strconv.FormatInt(q.Scans, 10),
			strconv.FormatInt(q.Conversions, 10),
			strconv.FormatFloat(q.Revenue, 'f', 2, 64),
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
