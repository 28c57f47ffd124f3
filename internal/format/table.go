package format

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Table writes rows under headers as plain left-aligned columns.
func Table(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("   ")
	table.SetNoWhiteSpace(true)

	table.SetHeader(headers)
	table.AppendBulk(rows)
	table.Render()
}
