package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- header comment
CREATE TABLE a (x Int32);

-- second
CREATE TABLE b (y String);
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (x Int32)" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	if err := validateNoSemicolonInStrings(`INSERT INTO t VALUES ('it''s fine');`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateNoSemicolonInStrings(`INSERT INTO t VALUES ('a;b');`); err == nil {
		t.Error("expected error for semicolon inside literal")
	}
}

func TestReadMigrations_LexicalOrderSkipsEmpty(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_b.sql":  {Data: []byte("SELECT 2;")},
		"pg/001_a.sql":  {Data: []byte("SELECT 1;")},
		"pg/003_c.sql":  {Data: []byte("   \n")},
		"pg/README.txt": {Data: []byte("ignored")},
	}

	files, err := readMigrations(fsys, "pg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0].name != "001_a.sql" || files[1].name != "002_b.sql" {
		t.Errorf("unexpected files %+v", files)
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	tests := []struct {
		dir  string
		fsys fs.FS
	}{
		{"postgres", PostgresFS},
		{"clickhouse", ClickhouseFS},
		{"sqlite", SQLiteFS},
	}

	for _, tt := range tests {
		files, err := readMigrations(tt.fsys, tt.dir)
		if err != nil {
			t.Fatalf("%s: %v", tt.dir, err)
		}
		if len(files) == 0 {
			t.Errorf("%s: expected at least one migration", tt.dir)
		}
	}
}

func TestRunSQLiteMigrations_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := RunSQLiteMigrations(ctx, db); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	var n int
	if err := db.QueryRow(`SELECT count(*) FROM backtest_runs`).Scan(&n); err != nil {
		t.Fatalf("query migrated table: %v", err)
	}
}
