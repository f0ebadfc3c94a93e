package backend

import (
	"path/filepath"
	"testing"

	"fintrack/internal/config"
	"fintrack/internal/storage"
	"fintrack/internal/store/memory"
)

func TestOpen(t *testing.T) {
	b, err := Open(Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := b.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", b)
	}

	path := filepath.Join(t.TempDir(), "db", "fintrack.db")
	b, err = Open(FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: path}))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer b.Close()
	if _, ok := b.(*storage.Repository); !ok {
		t.Fatalf("expected sql repository, got %T", b)
	}

	if _, err := Open(Config{Type: PostgresBackend}); err == nil {
		t.Fatalf("postgres without dsn should fail")
	}
	if _, err := Open(Config{Type: "sheets"}); err == nil {
		t.Fatalf("unknown backend should fail")
	}
	if BackendType("sheets").IsValid() {
		t.Fatalf("sheets is no longer a backend")
	}
}
