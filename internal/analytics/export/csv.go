// Package export serialises analytics reports for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/reparto-app/reparto/internal/analytics"
)

// WriteReportCSV serialises the full dashboard report to CSV. Sections are
// separated by a blank row so the file opens cleanly in a spreadsheet.
func WriteReportCSV(w io.Writer, report *analytics.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"From", orAll(report.From)},
		{"To", orAll(report.To)},
		{"Total Sales", formatInt(report.Summary.TotalSales)},
		{"Total Revenue", formatFloat(report.Summary.TotalRevenue)},
		{"Total Profit", formatFloat(report.Summary.TotalProfit)},
		{"Total Collected", formatFloat(report.Summary.TotalCollected)},
		{"Total Customers", formatInt(report.Summary.TotalCustomers)},
		{"Total Products", formatInt(report.Summary.TotalProducts)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write([]string{"Status", "Count"}); err != nil {
		return err
	}
	for _, row := range report.SalesByStatus {
		if err := writer.Write([]string{row.Status, formatInt(row.Count)}); err != nil {
			return err
		}
	}

	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write([]string{"Product", "Quantity", "Revenue"}); err != nil {
		return err
	}
	for _, row := range report.TopProducts {
		if err := writer.Write([]string{row.ProductName, formatInt(row.Quantity), formatFloat(row.Revenue)}); err != nil {
			return err
		}
	}

	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write([]string{"Customer", "Orders", "Total Spent"}); err != nil {
		return err
	}
	for _, row := range report.TopCustomers {
		if err := writer.Write([]string{row.Name, formatInt(row.Orders), formatFloat(row.TotalSpent)}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func orAll(v string) string {
	if v == "" {
		return "all"
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}
