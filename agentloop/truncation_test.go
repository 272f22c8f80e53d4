package agentloop

import (
	"strings"
	"testing"
)

func TestTruncateOutputUnderLimit(t *testing.T) {
	out := TruncateOutput("short", 100, TruncateHeadTail)
	if out != "short" {
		t.Errorf("under-limit output must pass through, got %q", out)
	}
}

func TestTruncateHeadTailKeepsBothEnds(t *testing.T) {
	input := strings.Repeat("A", 500) + strings.Repeat("Z", 500)
	out := TruncateOutput(input, 100, TruncateHeadTail)

	if !strings.HasPrefix(out, strings.Repeat("A", 50)) {
		t.Error("head should be preserved")
	}
	if !strings.HasSuffix(out, strings.Repeat("Z", 50)) {
		t.Error("tail should be preserved")
	}
	if !strings.Contains(out, "truncated") {
		t.Error("truncation should be announced")
	}
}

func TestTruncateTailKeepsEnd(t *testing.T) {
	input := strings.Repeat("A", 500) + strings.Repeat("Z", 100)
	out := TruncateOutput(input, 100, TruncateTail)

	if !strings.HasSuffix(out, strings.Repeat("Z", 100)) {
		t.Error("tail mode should keep the end")
	}
	if !strings.Contains(out, "First 500 characters were removed") {
		t.Errorf("unexpected banner: %q", out[:120])
	}
}

func TestTruncateLines(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString("line\n")
	}
	out := TruncateLines(sb.String(), 10)
	if !strings.Contains(out, "lines omitted") {
		t.Error("line truncation should be announced")
	}
	if got := strings.Count(out, "line\n"); got > 11 {
		t.Errorf("too many lines survived: %d", got)
	}
}

func TestTruncateToolOutputPerToolLimits(t *testing.T) {
	big := strings.Repeat("x", 60000)

	readOut := TruncateToolOutput(big, "read_file")
	if len(readOut) > 51000 {
		t.Errorf("read_file output should be near its 50000 limit, got %d", len(readOut))
	}

	writeOut := TruncateToolOutput(big, "write_file")
	if len(writeOut) > 2000 {
		t.Errorf("write_file output should be near its 1000 limit, got %d", len(writeOut))
	}

	unknownOut := TruncateToolOutput(big, "someday_tool")
	if len(unknownOut) > 31000 {
		t.Errorf("unknown tools fall back to the default limit, got %d", len(unknownOut))
	}
}
