package cmdutil

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Charliesj0129/pixAV/internal/cli/output"
	"github.com/Charliesj0129/pixAV/internal/cli/prompt"
)

func TestEmptyOr(t *testing.T) {
	if got := EmptyOr("", "-"); got != "-" {
		t.Errorf("EmptyOr(\"\", \"-\") = %q, want -", got)
	}
	if got := EmptyOr("a@example.com", "-"); got != "a@example.com" {
		t.Errorf("EmptyOr kept fallback over value: %q", got)
	}
}

func TestHandleAbort(t *testing.T) {
	if err := HandleAbort(prompt.ErrAborted); err != nil {
		t.Errorf("HandleAbort(ErrAborted) = %v, want nil", err)
	}

	real := errors.New("broker unreachable")
	if err := HandleAbort(real); !errors.Is(err, real) {
		t.Errorf("HandleAbort passed through %v, want original error", err)
	}
}

func TestPrintOutputTableEmpty(t *testing.T) {
	orig := Flags.Output
	Flags.Output = "table"
	t.Cleanup(func() { Flags.Output = orig })

	var buf bytes.Buffer
	err := PrintOutput(&buf, []string{}, true, "No accounts configured.", output.NewTableData("Email"))
	if err != nil {
		t.Fatalf("PrintOutput returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "No accounts configured.") {
		t.Errorf("expected empty message, got %q", buf.String())
	}
}

func TestPrintOutputJSON(t *testing.T) {
	orig := Flags.Output
	Flags.Output = "json"
	t.Cleanup(func() { Flags.Output = orig })

	var buf bytes.Buffer
	data := map[string]int64{"pixav:download": 4}
	if err := PrintOutput(&buf, data, false, "", nil); err != nil {
		t.Fatalf("PrintOutput returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"pixav:download": 4`) {
		t.Errorf("unexpected json output: %q", buf.String())
	}
}

func TestPrintResourceTable(t *testing.T) {
	orig := Flags.Output
	Flags.Output = "table"
	t.Cleanup(func() { Flags.Output = orig })

	table := output.NewTableData("Queue", "Depth")
	table.AddRow("pixav:upload", "2")

	var buf bytes.Buffer
	if err := PrintResource(&buf, nil, table); err != nil {
		t.Fatalf("PrintResource returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "pixav:upload") {
		t.Errorf("table output missing row: %q", buf.String())
	}
}
