package db

import (
	"strings"
	"testing"
)

func TestToMigrateURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "postgres scheme",
			in:   "postgres://user:pw@localhost:5432/kbase?sslmode=disable",
			want: "pgx5://user:pw@localhost:5432/kbase?sslmode=disable",
		},
		{
			name: "postgresql scheme",
			in:   "postgresql://user@db/kbase",
			want: "pgx5://user@db/kbase",
		},
		{
			name:    "unsupported scheme",
			in:      "mysql://root@localhost/db",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toMigrateURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("toMigrateURL(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("toMigrateURL(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("toMigrateURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}
	// Every up migration needs its down counterpart.
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("migration pairs mismatched: %d up, %d down", ups, downs)
	}
}
