package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"case-console/internal/catalog"
	"case-console/internal/model"
)

// terminalView prints controller notices as single lines.
type terminalView struct {
	out     io.Writer
	onReset func()
}

func (v terminalView) Notify(n catalog.Notice) {
	line := fmt.Sprintf("[%s] %s", n.Level, n.Title)
	if n.Detail != "" {
		line += ": " + n.Detail
	}
	fmt.Fprintln(v.out, line)
}

func (v terminalView) ResetForm() {
	if v.onReset != nil {
		v.onReset()
	}
}

// printCases writes items in order. resolve turns server-relative image
// paths into absolute URLs and may be nil.
func printCases(w io.Writer, items []model.CaseRecord, asJSON bool, resolve func(string) string) error {
	if resolve != nil {
		resolved := make([]model.CaseRecord, len(items))
		for i, item := range items {
			item.ImageURL = resolve(item.ImageURL)
			resolved[i] = item
		}
		items = resolved
	}

	if asJSON {
		if items == nil {
			items = []model.CaseRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no cases")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tTITLE\tTYPE\tLOCATION\tIMAGE")
	for i, item := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, item.ID, item.Title, item.ServiceType, item.LocationTag, item.ImageURL)
	}
	return tw.Flush()
}
