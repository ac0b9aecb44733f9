package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/apierror"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/buddy"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/querytool"

	"github.com/pterm/pterm"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints res as JSON or hands its data to render. A failed result is
// rendered as an error and reported as errReported.
func emit[T any](a *app, res buddy.Result[T], render func(io.Writer, *T)) error {
	if a.jsonOut {
		if err := printJSON(a.out, res); err != nil {
			return err
		}
	} else if res.Success {
		render(a.out, res.Data)
	} else {
		renderFailure(a.out, res.Error, res.Details)
	}

	if !res.Success {
		return errReported
	}
	return nil
}

func renderFailure(w io.Writer, msg string, details *apierror.Error) {
	line := msg
	if details != nil {
		switch details.Kind() {
		case apierror.KindConnection:
			line += " (is the backend running?)"
		case apierror.KindTimeout:
			line += " (try a larger --timeout)"
		}
	}
	fmt.Fprint(w, pterm.Error.Sprintln(line))
}

func renderQueryResult(w io.Writer, r *models.QueryResult) {
	fmt.Fprintln(w, pterm.DefaultBox.WithTitle("SQL").Sprint(r.SQLQuery))
	fmt.Fprintln(w)
	fmt.Fprintln(w, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint("Explanation"))
	fmt.Fprintln(w, r.Explanation)
	fmt.Fprintln(w)
	fmt.Fprintln(w, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint("Optimization"))
	fmt.Fprintln(w, r.Optimization)
}

func renderHealth(w io.Writer, h *models.HealthStatus) {
	fmt.Fprint(w, pterm.Success.Sprintln("backend is "+h.Status))
	for _, k := range sortedKeys(h.Services) {
		fmt.Fprintf(w, "  %-16s %s\n", k, h.Services[k])
	}
	if model := h.Config["model"]; model != "" {
		fmt.Fprintf(w, "  %-16s %s\n", "model", model)
	}
}

func renderTables(w io.Writer, t *models.TablesResponse) {
	if t.TotalCount == 0 {
		fmt.Fprint(w, pterm.Warning.Sprintln("no tables registered; add some with `buddy metadata add`"))
		return
	}
	data := pterm.TableData{{"Table", "Schema", "Description"}}
	for _, m := range t.Tables {
		data = append(data, []string{m.TableName, m.SchemaInfo, m.Description})
	}
	renderTable(w, data)
	fmt.Fprintf(w, "%d table(s)\n", t.TotalCount)
}

func renderInfo(w io.Writer, info *models.APIInfo) {
	fmt.Fprintf(w, "%s %s (%s)\n", info.Message, info.Version, info.Status)
	for _, k := range sortedKeys(info.Endpoints) {
		fmt.Fprintf(w, "  %-10s %s\n", k, info.Endpoints[k])
	}
}

func renderAck(w io.Writer, ack *models.MetadataAck) {
	fmt.Fprint(w, pterm.Success.Sprintln(ack.Message))
}

func renderRows(w io.Writer, rows *querytool.Rows) {
	if len(rows.Rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}
	data := pterm.TableData{rows.Columns}
	for _, r := range rows.Rows {
		line := make([]string, len(rows.Columns))
		for i, c := range rows.Columns {
			line[i] = fmt.Sprint(r[c])
		}
		data = append(data, line)
	}
	renderTable(w, data)

	suffix := ""
	if rows.Truncated {
		suffix = ", truncated"
	}
	fmt.Fprintf(w, "(%d rows%s)\n", len(rows.Rows), suffix)
}

func renderTable(w io.Writer, data pterm.TableData) {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		// Fall back to tab-separated output.
		for _, row := range data {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}
	fmt.Fprintln(w, s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
