package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeRunner returns canned output keyed by the joined argument string.
type fakeRunner struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	return f.responses[key], nil
}

func newTestRepo(t *testing.T, runner *fakeRunner) *Repo {
	t.Helper()
	if runner.responses == nil {
		runner.responses = map[string]string{}
	}
	runner.responses["rev-parse --show-toplevel"] = "/work/project\n"

	repo, err := Open(context.Background(), "/work/project", WithRunner(runner))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return repo
}

func TestOpen_NotARepository(t *testing.T) {
	runner := &fakeRunner{
		errs: map[string]error{
			"rev-parse --show-toplevel": fmt.Errorf("fatal: not a git repository"),
		},
	}

	_, err := Open(context.Background(), "/tmp/nowhere", WithRunner(runner))
	if !errors.Is(err, ErrNotARepository) {
		t.Fatalf("expected ErrNotARepository, got %v", err)
	}
}

func TestAllChanges_CombinesStagedAndUnstaged(t *testing.T) {
	repo := newTestRepo(t, &fakeRunner{
		responses: map[string]string{
			"diff --cached --unified=3": "staged-diff",
			"diff --unified=3":          "unstaged-diff",
		},
	})

	out, err := repo.AllChanges(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out != "staged-diff\n\nunstaged-diff" {
		t.Errorf("unexpected combined diff: %q", out)
	}
}

func TestAllChanges_OnlyStaged(t *testing.T) {
	repo := newTestRepo(t, &fakeRunner{
		responses: map[string]string{
			"diff --cached --unified=3": "staged-diff",
		},
	})

	out, err := repo.AllChanges(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out != "staged-diff" {
		t.Errorf("expected staged diff only, got %q", out)
	}
}

func TestChangedFiles_UnionDeduped(t *testing.T) {
	repo := newTestRepo(t, &fakeRunner{
		responses: map[string]string{
			"diff --cached --name-only":           "a.go\nshared.go\n",
			"diff --name-only":                    "shared.go\nb.go\n",
			"ls-files --others --exclude-standard": "new.txt\n",
		},
	})

	files, err := repo.ChangedFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"a.go", "b.go", "new.txt", "shared.go"}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("ChangedFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestIsDirty(t *testing.T) {
	repo := newTestRepo(t, &fakeRunner{
		responses: map[string]string{"status --porcelain": " M a.go\n?? b.go\n"},
	})

	dirty, err := repo.IsDirty(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !dirty {
		t.Error("expected dirty repository")
	}
}

func TestLog_ParsesRecords(t *testing.T) {
	out := "abc123" + fieldSep + "Ada" + fieldSep + "ada@example.com" + fieldSep + "1700000000" + fieldSep + "fix: parser" + fieldSep + "Long body\nwith lines" + recordSep +
		"\ndef456" + fieldSep + "Bob" + fieldSep + "bob@example.com" + fieldSep + "1690000000" + fieldSep + "feat: add store" + fieldSep + "" + recordSep

	repo := newTestRepo(t, &fakeRunner{
		responses: map[string]string{
			"log --pretty=format:%H" + fieldSep + "%an" + fieldSep + "%ae" + fieldSep + "%at" + fieldSep + "%s" + fieldSep + "%b" + recordSep + " -n 2": out,
		},
	})

	commits, err := repo.Log(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}

	first := commits[0]
	if first.Hash != "abc123" || first.Author != "Ada" || first.Subject != "fix: parser" {
		t.Errorf("unexpected first commit: %+v", first)
	}
	if first.Body != "Long body\nwith lines" {
		t.Errorf("body not preserved: %q", first.Body)
	}
	if !first.When.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Errorf("unexpected timestamp: %v", first.When)
	}
	if commits[1].Body != "" {
		t.Errorf("expected empty body, got %q", commits[1].Body)
	}
}

func TestLog_EmptyRepository(t *testing.T) {
	repo := newTestRepo(t, &fakeRunner{
		errs: map[string]error{},
	})
	repo.runner.(*fakeRunner).errs["log --pretty=format:%H"+fieldSep+"%an"+fieldSep+"%ae"+fieldSep+"%at"+fieldSep+"%s"+fieldSep+"%b"+recordSep] =
		fmt.Errorf("fatal: your current branch 'main' does not have any commits yet")

	commits, err := repo.Log(context.Background(), 0)
	if err != nil {
		t.Fatalf("expected nil error for empty repo, got %v", err)
	}
	if commits != nil {
		t.Errorf("expected no commits, got %v", commits)
	}
}

func TestFileLog(t *testing.T) {
	out := "Ada" + fieldSep + "ada@example.com" + fieldSep + "1700000000\nBob" + fieldSep + "bob@example.com" + fieldSep + "1690000000"
	repo := newTestRepo(t, &fakeRunner{
		responses: map[string]string{
			"log --pretty=format:%an" + fieldSep + "%ae" + fieldSep + "%at -n 10 --follow -- main.go": out,
		},
	})

	touches, err := repo.FileLog(context.Background(), "main.go", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(touches) != 2 {
		t.Fatalf("expected 2 touches, got %d", len(touches))
	}
	if touches[0].Email != "ada@example.com" || touches[1].Author != "Bob" {
		t.Errorf("unexpected touches: %+v", touches)
	}
}

func TestCommit_RejectsEmptyMessage(t *testing.T) {
	repo := newTestRepo(t, &fakeRunner{})

	if err := repo.Commit(context.Background(), "   "); err == nil {
		t.Error("expected error for blank commit message")
	}
}

func TestSubjectsSince(t *testing.T) {
	repo := newTestRepo(t, &fakeRunner{
		responses: map[string]string{
			"log main..HEAD --pretty=format:%s": "feat: one\nfix: two\n",
		},
	})

	subjects, err := repo.SubjectsSince(context.Background(), "main")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"feat: one", "fix: two"}
	if diff := cmp.Diff(want, subjects); diff != "" {
		t.Errorf("SubjectsSince mismatch (-want +got):\n%s", diff)
	}
}

func TestFileContent_Binary(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blob.bin"), []byte{0xff, 0xfe, 0x00, 0x01}, 0644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{responses: map[string]string{"rev-parse --show-toplevel": dir + "\n"}}
	repo, err := Open(context.Background(), dir, WithRunner(runner))
	if err != nil {
		t.Fatal(err)
	}

	_, err = repo.FileContent("blob.bin")
	if !errors.Is(err, ErrBinaryFile) {
		t.Errorf("expected ErrBinaryFile, got %v", err)
	}
}
