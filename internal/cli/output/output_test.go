package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "uppercase json", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFormat(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	if FormatTable.String() != "table" || FormatJSON.String() != "json" || FormatYAML.String() != "yaml" {
		t.Errorf("unexpected format strings: %q %q %q", FormatTable, FormatJSON, FormatYAML)
	}
}

func TestPrinterMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)

	if p.Format() != FormatTable {
		t.Errorf("Format() = %q, want table", p.Format())
	}
	if p.ColorEnabled() {
		t.Error("color should be disabled")
	}

	p.Println("queue drained")
	p.Success("account enabled")
	p.Warning("queue depth above threshold")
	p.Error("migration failed")

	out := buf.String()
	for _, want := range []string{"queue drained", "account enabled", "queue depth above threshold", "migration failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("output contains ANSI escapes with color disabled:\n%s", out)
	}
}

func TestPrinterColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, true)

	p.Success("done")
	if !strings.Contains(buf.String(), "\033[32m") {
		t.Errorf("success message missing green escape: %q", buf.String())
	}
}

func TestPrinterPrintDispatch(t *testing.T) {
	table := NewTableData("ID", "State")
	table.AddRow("task-1", "pending")

	var buf bytes.Buffer
	if err := NewPrinter(&buf, FormatTable, false).Print(table); err != nil {
		t.Fatalf("Print(table) returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "task-1") {
		t.Errorf("table output missing row: %q", buf.String())
	}

	buf.Reset()
	if err := NewPrinter(&buf, FormatJSON, false).Print(map[string]int{"pending": 3}); err != nil {
		t.Fatalf("Print(json) returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"pending": 3`) {
		t.Errorf("json output missing field: %q", buf.String())
	}

	buf.Reset()
	if err := NewPrinter(&buf, FormatYAML, false).Print(map[string]int{"pending": 3}); err != nil {
		t.Fatalf("Print(yaml) returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "pending: 3") {
		t.Errorf("yaml output missing field: %q", buf.String())
	}
}

func TestTableData(t *testing.T) {
	table := NewTableData("Email", "Uploads", "Status")

	if len(table.Headers()) != 3 {
		t.Fatalf("Headers() = %v, want 3 columns", table.Headers())
	}
	if len(table.Rows()) != 0 {
		t.Fatalf("new table should have no rows, got %d", len(table.Rows()))
	}

	table.AddRow("a@example.com", "12", "active")
	table.AddRow("b@example.com", "0", "cooldown")

	rows := table.Rows()
	if len(rows) != 2 {
		t.Fatalf("Rows() = %d rows, want 2", len(rows))
	}
	if rows[0][0] != "a@example.com" || rows[1][2] != "cooldown" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Queue", "Depth")
	table.AddRow("pixav:download", "4")
	table.AddRow("pixav:upload", "0")

	var buf bytes.Buffer
	if err := PrintTable(&buf, table); err != nil {
		t.Fatalf("PrintTable returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"QUEUE", "DEPTH", "pixav:download", "pixav:upload", "4"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestSimpleTable(t *testing.T) {
	pairs := [][2]string{
		{"State", "running"},
		{"PID", "4242"},
	}

	var buf bytes.Buffer
	if err := SimpleTable(&buf, pairs); err != nil {
		t.Fatalf("SimpleTable returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"State", "running", "PID", "4242"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintJSON(t *testing.T) {
	data := struct {
		Queue string `json:"queue"`
		Depth int64  `json:"depth"`
	}{Queue: "pixav:download", Depth: 7}

	var buf bytes.Buffer
	if err := PrintJSON(&buf, data); err != nil {
		t.Fatalf("PrintJSON returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"queue": "pixav:download"`) || !strings.Contains(out, `"depth": 7`) {
		t.Errorf("unexpected json output: %q", out)
	}
}

func TestPrintJSONCompact(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONCompact(&buf, map[string]int{"depth": 7}); err != nil {
		t.Fatalf("PrintJSONCompact returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `{"depth":7}`) {
		t.Errorf("unexpected compact json: %q", buf.String())
	}
}

func TestPrintYAML(t *testing.T) {
	data := []struct {
		Queue string `yaml:"queue"`
	}{
		{Queue: "pixav:download"},
		{Queue: "pixav:upload"},
	}

	var buf bytes.Buffer
	if err := PrintYAML(&buf, data); err != nil {
		t.Fatalf("PrintYAML returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "- queue: pixav:download") || !strings.Contains(out, "- queue: pixav:upload") {
		t.Errorf("unexpected yaml output: %q", out)
	}
}
