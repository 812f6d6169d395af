package database

import "testing"

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260801_000000_initial_schema.up.sql", "20260801_000000", true, true},
		{"20260801_000000_initial_schema.down.sql", "20260801_000000", false, true},
		{"20260801_000000.up.sql", "", false, false},
		{"README.md", "", false, false},
		{"notes.sql", "", false, false},
	}

	for _, tt := range tests {
		version, isUp, ok := parseMigrationFilename(tt.name)
		if ok != tt.wantOK {
			t.Errorf("%s: ok=%v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if version != tt.wantVersion {
			t.Errorf("%s: version=%q, want %q", tt.name, version, tt.wantVersion)
		}
		if isUp != tt.wantUp {
			t.Errorf("%s: isUp=%v, want %v", tt.name, isUp, tt.wantUp)
		}
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260801_000000_initial_schema.up.sql", "initial_schema"},
		{"20260801_000000_add_ir_signals.down.sql", "add_ir_signals"},
		{"odd.sql", "odd"},
	}

	for _, tt := range tests {
		if got := extractMigrationName(tt.filename); got != tt.want {
			t.Errorf("extractMigrationName(%q): got %q, want %q", tt.filename, got, tt.want)
		}
	}
}
