package agentloop

import (
	"strings"
	"testing"
)

func runTool(t *testing.T, reg *ToolRegistry, ws *Workspace, name string, args map[string]interface{}) (string, error) {
	t.Helper()
	tool := reg.Get(name)
	if tool == nil {
		t.Fatalf("tool %s not registered", name)
	}
	return tool.Handler(args, ws)
}

func TestReadFileLineNumbers(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(map[string]string{"a.html": "<html>\n<body>\n</body>\n</html>"})

	out, err := runTool(t, reg, ws, "read_file", map[string]interface{}{"path": "a.html"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0] != "1 | <html>" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[3] != "4 | </html>" {
		t.Errorf("unexpected last line: %q", lines[3])
	}
}

func TestReadFileOffsetAndLimit(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(map[string]string{"a.txt": "l1\nl2\nl3\nl4\nl5"})

	out, err := runTool(t, reg, ws, "read_file", map[string]interface{}{
		"path": "a.txt", "offset": 2.0, "limit": 2.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2 | l2\n3 | l3\n" {
		t.Errorf("unexpected window: %q", out)
	}
}

func TestWriteThenReadBack(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(nil)

	out, err := runTool(t, reg, ws, "write_file", map[string]interface{}{
		"path": "new.css", "content": "a { color: #06c; }",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "new.css") {
		t.Errorf("confirmation should name the path: %q", out)
	}
	if content, ok := ws.Read("new.css"); !ok || content != "a { color: #06c; }" {
		t.Errorf("write did not land: %q", content)
	}
}

func TestEditRequiresUniqueOldString(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(map[string]string{"a.html": "<img src=\"x\">\n<img src=\"y\">"})

	_, err := runTool(t, reg, ws, "edit_file", map[string]interface{}{
		"path": "a.html", "old_string": "<img", "new_string": "<img alt=\"\"",
	})
	if err == nil {
		t.Fatal("ambiguous old_string should fail")
	}
	if !strings.Contains(err.Error(), "replace_all") {
		t.Errorf("error should suggest replace_all: %v", err)
	}
	if ws.ChangeCount() != 0 {
		t.Error("failed edit must not mutate the workspace")
	}
}

func TestEditReplaceAll(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(map[string]string{"a.html": "<b>x</b> <b>y</b>"})

	out, err := runTool(t, reg, ws, "edit_file", map[string]interface{}{
		"path": "a.html", "old_string": "<b>", "new_string": "<strong>", "replace_all": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "2") {
		t.Errorf("confirmation should report the occurrence count: %q", out)
	}
	content, _ := ws.Read("a.html")
	if content != "<strong>x</b> <strong>y</b>" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestEditOldStringNotFound(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(map[string]string{"a.html": "hello"})

	_, err := runTool(t, reg, ws, "edit_file", map[string]interface{}{
		"path": "a.html", "old_string": "absent", "new_string": "x",
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestListDirectoryPrefix(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(map[string]string{
		"index.html":     "<html>",
		"css/site.css":   "body {}",
		"css/print.css":  "@media print {}",
		"js/app.js":      "void 0",
	})

	out, err := runTool(t, reg, ws, "list_directory", map[string]interface{}{"path": "css/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "index.html") || strings.Contains(out, "app.js") {
		t.Errorf("prefix filter leaked: %q", out)
	}
	if !strings.Contains(out, "css/site.css (7 bytes)") {
		t.Errorf("entries should carry sizes: %q", out)
	}
}

func TestSearchPattern(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(map[string]string{
		"a.html": "<img src=\"logo.png\">\n<p>text</p>",
		"b.html": "<IMG src=\"photo.png\">",
	})

	out, err := runTool(t, reg, ws, "search_pattern", map[string]interface{}{"pattern": "<img"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "a.html:1:") {
		t.Errorf("match should be path:line prefixed: %q", out)
	}
	if strings.Contains(out, "b.html") {
		t.Errorf("case sensitive by default: %q", out)
	}

	out, err = runTool(t, reg, ws, "search_pattern", map[string]interface{}{
		"pattern": "<img", "case_insensitive": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "b.html:1:") {
		t.Errorf("case insensitive search missed b.html: %q", out)
	}
}

func TestSearchPatternInvalidRegex(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(map[string]string{"a.html": "x"})

	_, err := runTool(t, reg, ws, "search_pattern", map[string]interface{}{"pattern": "[unclosed"})
	if err == nil || !strings.Contains(err.Error(), "invalid pattern") {
		t.Errorf("expected invalid pattern error, got %v", err)
	}
}

func TestSearchPatternResultCap(t *testing.T) {
	reg := newTestRegistry(t)
	content := strings.Repeat("match\n", 50)
	ws := NewWorkspace(map[string]string{"big.txt": content})

	out, err := runTool(t, reg, ws, "search_pattern", map[string]interface{}{
		"pattern": "match", "max_results": 5.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Count(out, "big.txt:"); got != 5 {
		t.Errorf("expected 5 capped matches, got %d", got)
	}
	if !strings.Contains(out, "capped") {
		t.Errorf("output should note the cap: %q", out)
	}
}

func TestCompleteRequiresSummary(t *testing.T) {
	reg := newTestRegistry(t)
	ws := NewWorkspace(nil)

	if _, err := runTool(t, reg, ws, CompleteToolName, map[string]interface{}{"summary": ""}); err == nil {
		t.Error("empty summary should fail")
	}
	out, err := runTool(t, reg, ws, CompleteToolName, map[string]interface{}{"summary": "fixed all alt text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "fixed all alt text" {
		t.Errorf("complete should echo the summary, got %q", out)
	}
}
