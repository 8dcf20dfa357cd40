package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reparto-app/reparto/internal/analytics"
)

func TestWriteReportCSV(t *testing.T) {
	report := &analytics.Report{
		From: "2026-08-01",
		To:   "2026-08-29",
		Summary: analytics.Summary{
			TotalSales:     3,
			TotalRevenue:   120.5,
			TotalProfit:    41.25,
			TotalCollected: 110,
			TotalCustomers: 4,
			TotalProducts:  5,
		},
		SalesByStatus: []analytics.StatusCount{
			{Status: "completed", Count: 2},
			{Status: "draft", Count: 1},
		},
		TopProducts: []analytics.TopProduct{
			{ProductName: "Pan de pueblo", Quantity: 40, Revenue: 60},
		},
		TopCustomers: []analytics.TopCustomer{
			{Name: "Ana García", Orders: 3, TotalSpent: 45.5},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, report))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Metric,Value\n"))
	assert.Contains(t, out, "From,2026-08-01\n")
	assert.Contains(t, out, "Total Revenue,120.50\n")
	assert.Contains(t, out, "Status,Count\ncompleted,2\n")
	assert.Contains(t, out, "Product,Quantity,Revenue\nPan de pueblo,40,60.00\n")
	assert.Contains(t, out, "Customer,Orders,Total Spent\nAna García,3,45.50\n")
}

func TestWriteReportCSVUnboundedRange(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, &analytics.Report{}))

	out := buf.String()
	assert.Contains(t, out, "From,all\n")
	assert.Contains(t, out, "To,all\n")
}
