package templaterepo

import (
	"strings"
	"testing"
)

func TestEnsureRepoIsIdempotent(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureTemplateRepo("tpl_1", []byte(`{"v":1}`), "Budi"); err != nil {
		t.Fatalf("EnsureTemplateRepo() error = %v", err)
	}
	if err := svc.EnsureTemplateRepo("tpl_1", []byte(`{"v":2}`), "Budi"); err != nil {
		t.Fatalf("second EnsureTemplateRepo() error = %v", err)
	}

	history, err := svc.History("tpl_1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected a single initial commit, got %d", len(history))
	}
}

func TestCommitSettingsAndReadBack(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureTemplateRepo("tpl_2", []byte(`{"rev":"first"}`), "Budi"); err != nil {
		t.Fatalf("EnsureTemplateRepo() error = %v", err)
	}
	commit, err := svc.CommitSettings("tpl_2", []byte(`{"rev":"second"}`), "Ratna", "Adjust margins")
	if err != nil {
		t.Fatalf("CommitSettings() error = %v", err)
	}
	if commit.Author != "Ratna" {
		t.Errorf("commit author = %q, want Ratna", commit.Author)
	}

	history, err := svc.History("tpl_2", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
	if !strings.Contains(history[0].Message, "Adjust margins") {
		t.Errorf("newest commit message = %q", history[0].Message)
	}

	old, err := svc.GetSettingsByHash("tpl_2", history[1].Hash)
	if err != nil {
		t.Fatalf("GetSettingsByHash() error = %v", err)
	}
	if !strings.Contains(string(old), "first") {
		t.Errorf("historical settings = %s, want first revision", old)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureTemplateRepo("tpl_3", []byte(`{"n":0}`), "Budi"); err != nil {
		t.Fatalf("EnsureTemplateRepo() error = %v", err)
	}
	for i := 1; i <= 3; i++ {
		if _, err := svc.CommitSettings("tpl_3", []byte(`{"n":`+string(rune('0'+i))+`}`), "Budi", "Save"); err != nil {
			t.Fatalf("CommitSettings() error = %v", err)
		}
	}

	history, err := svc.History("tpl_3", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(history))
	}
}
