package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatal(err)
	}
}

func TestLocateNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	touch(t, filepath.Join(dir, "old.csv"), base)
	touch(t, filepath.Join(dir, "new.csv"), base.Add(time.Hour))
	touch(t, filepath.Join(dir, "newer.txt"), base.Add(2*time.Hour))
	touch(t, filepath.Join(dir, ".hidden.csv"), base.Add(3*time.Hour))

	got, err := LocateInput("", dir, "*.csv")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "new.csv" {
		t.Fatalf("got %s", got)
	}
}

func TestLocateFixedPath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "fixed.csv")
	touch(t, p, time.Now())

	got, err := LocateInput(p, "/nowhere", "*.csv")
	if err != nil || got != p {
		t.Fatalf("got %q err=%v", got, err)
	}

	_, err = LocateInput(filepath.Join(dir, "missing.csv"), dir, "*.csv")
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("err=%v", err)
	}
	_, err = LocateInput(dir, "", "")
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("directory accepted: %v", err)
	}
}

func TestLocateNothing(t *testing.T) {
	_, err := LocateInput("", t.TempDir(), "*.csv")
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("err=%v", err)
	}
	_, err = LocateInput("", filepath.Join(t.TempDir(), "absent"), "*.csv")
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("err=%v", err)
	}
}
