package diffparse

import (
	"strings"
	"testing"
)

const sampleDiff = `diff --git a/src/main.py b/src/main.py
index 1234567..abcdefg 100644
--- a/src/main.py
+++ b/src/main.py
@@ -1,3 +1,4 @@
 def hello():
-    print("old")
+    print("new")
+    return True
`

func TestParse_SingleFile(t *testing.T) {
	files := Parse(sampleDiff)

	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}

	f := files[0]
	if f.Path != "src/main.py" {
		t.Errorf("expected path src/main.py, got %q", f.Path)
	}
	if len(f.Additions) != 2 {
		t.Errorf("expected 2 additions, got %d: %v", len(f.Additions), f.Additions)
	}
	if len(f.Deletions) != 1 {
		t.Errorf("expected 1 deletion, got %d: %v", len(f.Deletions), f.Deletions)
	}
	if f.Additions[0] != `print("new")` {
		t.Errorf("unexpected addition content: %q", f.Additions[0])
	}
	if f.ChangeSummary() != "+2, -1" {
		t.Errorf("unexpected change summary: %q", f.ChangeSummary())
	}
}

func TestParse_MultipleFiles(t *testing.T) {
	diff := sampleDiff + `diff --git a/README.md b/README.md
index 0000001..0000002 100644
--- a/README.md
+++ b/README.md
@@ -1 +1,2 @@
 # Title
+New line
`
	files := Parse(diff)

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[1].Path != "README.md" {
		t.Errorf("expected README.md, got %q", files[1].Path)
	}
	if len(files[1].Additions) != 1 || len(files[1].Deletions) != 0 {
		t.Errorf("unexpected README changes: %+v", files[1])
	}
}

func TestParse_EmptyInput(t *testing.T) {
	if got := Parse(""); got != nil {
		t.Errorf("expected nil for empty diff, got %v", got)
	}
	if got := Parse("   \n\t  "); got != nil {
		t.Errorf("expected nil for whitespace diff, got %v", got)
	}
}

func TestParse_FileMarkersNotCounted(t *testing.T) {
	files := Parse(sampleDiff)

	for _, add := range files[0].Additions {
		if strings.HasPrefix(add, "++") {
			t.Errorf("file marker leaked into additions: %q", add)
		}
	}
	for _, del := range files[0].Deletions {
		if strings.HasPrefix(del, "--") {
			t.Errorf("file marker leaked into deletions: %q", del)
		}
	}
}

func TestParse_PathFallback(t *testing.T) {
	// No "a/... b/..." pair on one line; only the +++ marker identifies the path.
	diff := "diff --git weird header\n--- /dev/null\n+++ b/new_file.go\n@@ -0,0 +1 @@\n+package main\n"

	files := Parse(diff)
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].Path != "new_file.go" {
		t.Errorf("expected new_file.go, got %q", files[0].Path)
	}
}

func TestSummary(t *testing.T) {
	got := Summary(sampleDiff)
	want := "1 file(s) changed: 2 addition(s), 1 deletion(s)"
	if got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestSummary_NoChanges(t *testing.T) {
	if got := Summary(""); got != "No changes detected" {
		t.Errorf("Summary(\"\") = %q", got)
	}
}

func TestSummary_TotalsMatchPerFileCounts(t *testing.T) {
	diff := sampleDiff + `diff --git a/b.go b/b.go
--- a/b.go
+++ b/b.go
@@ -1,2 +1,1 @@
-gone
-also gone
+kept
`
	files := Parse(diff)
	totalAdd, totalDel := 0, 0
	for _, f := range files {
		totalAdd += len(f.Additions)
		totalDel += len(f.Deletions)
	}

	want := "2 file(s) changed: 3 addition(s), 3 deletion(s)"
	if got := Summary(diff); got != want {
		t.Errorf("Summary = %q, want %q (totals %d/%d)", got, want, totalAdd, totalDel)
	}
}

func TestTruncate_CutsOnFileBoundary(t *testing.T) {
	second := `diff --git a/b.go b/b.go
--- a/b.go
+++ b/b.go
@@ -1 +1 @@
-x
+y
`
	diff := sampleDiff + second

	out := Truncate(diff, len(sampleDiff)+5)

	if !strings.Contains(out, "src/main.py") {
		t.Error("first file should survive truncation")
	}
	if strings.Contains(out, "b.go") {
		t.Error("second file should be dropped")
	}
	if !strings.HasSuffix(out, "... (diff truncated)") {
		t.Errorf("missing truncation marker: %q", out[len(out)-30:])
	}
}

func TestTruncate_NoopWhenSmall(t *testing.T) {
	if got := Truncate(sampleDiff, 1<<20); got != sampleDiff {
		t.Error("small diff should pass through unchanged")
	}
	if got := Truncate(sampleDiff, 0); got != sampleDiff {
		t.Error("maxBytes <= 0 should pass through unchanged")
	}
}

func TestTruncate_OversizedSingleChunk(t *testing.T) {
	out := Truncate(sampleDiff, 20)
	if len(out) >= len(sampleDiff) {
		t.Error("expected hard cut of oversized chunk")
	}
	if !strings.HasSuffix(out, "... (diff truncated)") {
		t.Error("missing truncation marker on hard cut")
	}
}
