package main

import (
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
)

var FuncMap = template.FuncMap{
	"humanBytes": func(n uint64) string {
		return humanize.Bytes(n)
	},
	"shorten": func(s string) string {
		if len(s) <= 8 {
			return s
		}
		return s[len(s)-8:]
	},
	"humanTime": func(t time.Time) string {
		return humanize.Time(t)
	},
	"duration": humanDuration,
}

// humanDuration returns the time elapsed between from and to, or now when to
// is nil.
func humanDuration(from time.Time, to *time.Time) string {
	if to == nil {
		return time.Since(from).Truncate(time.Millisecond).String()
	}
	return to.Sub(from).Truncate(time.Millisecond).String()
}

func ParseTemplate(body string) (*template.Template, error) {
	return template.New("").Funcs(promptui.FuncMap).Funcs(FuncMap).Parse(fmt.Sprintf("%s\n", body))
}

func getTable(headers []string, out io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	return table
}
