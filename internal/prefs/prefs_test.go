package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "prefs.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p != (Prefs{}) {
		t.Fatalf("Load = %+v, want zero prefs", p)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	p, err := Load("  ")
	if err != nil || p != (Prefs{}) {
		t.Fatalf("Load(blank) = %+v, %v; want zero, nil", p, err)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	content := "no_color = true\ntheme = \" latte \"\nlast_stack = \"media\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Prefs{NoColor: true, Theme: "latte", LastStack: "media"}
	if p != want {
		t.Fatalf("Load = %+v, want %+v", p, want)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("no_color = [\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load(path)
	if err == nil {
		t.Fatal("Load should report a parse error")
	}
	if p != (Prefs{}) {
		t.Fatalf("Load = %+v, want zero prefs on error", p)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := Path(filepath.Join(t.TempDir(), "nested", "bunshinctl"))
	want := Prefs{NoColor: true, LastStack: "web"}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != want {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}
}

func TestLoad_TildePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := Save("~/.config/bunshinctl/prefs.toml", Prefs{Theme: "frappe"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".config", "bunshinctl", "prefs.toml")); err != nil {
		t.Fatalf("prefs file not under HOME: %v", err)
	}
	p, _ := Load("~/.config/bunshinctl/prefs.toml")
	if p.Theme != "frappe" {
		t.Fatalf("Theme = %q, want frappe", p.Theme)
	}
}
