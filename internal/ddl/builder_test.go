package ddl

import (
	"errors"
	"strings"
	"testing"

	"github.com/tordrt/schemasync/internal/schema"
)

func TestIdent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "videos", want: `"videos"`},
		{name: "underscore and digits", input: "idx_videos_2", want: `"idx_videos_2"`},
		{name: "leading underscore", input: "_tmp", want: `"_tmp"`},
		{name: "empty", input: "", wantErr: true},
		{name: "leading digit", input: "1table", wantErr: true},
		{name: "space", input: "my table", wantErr: true},
		{name: "quote injection", input: `videos"; DROP TABLE videos; --`, wantErr: true},
		{name: "dash", input: "shared-links", wantErr: true},
		{name: "reserved prefix", input: "sqlite_master", wantErr: true},
		{name: "too long", input: strings.Repeat("a", maxIdentifierLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Ident(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentifier) {
					t.Errorf("Ident(%q) error = %v, want ErrInvalidIdentifier", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Ident(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Ident(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestColumnType(t *testing.T) {
	valid := []string{"TEXT", "INTEGER", "DATETIME", "VARCHAR(255)", "DECIMAL(10, 2)", "UNSIGNED BIG INT", "double precision"}
	for _, typ := range valid {
		if _, err := ColumnType(typ); err != nil {
			t.Errorf("ColumnType(%q) unexpected error: %v", typ, err)
		}
	}

	invalid := []string{"", "TEXT)", "INT; DROP TABLE x", "VARCHAR(abc)", "TEXT -- comment", "(TEXT)"}
	for _, typ := range invalid {
		if _, err := ColumnType(typ); !errors.Is(err, ErrInvalidType) {
			t.Errorf("ColumnType(%q) error = %v, want ErrInvalidType", typ, err)
		}
	}
}

func TestDefaultLiteral(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "CURRENT_TIMESTAMP", want: "CURRENT_TIMESTAMP"},
		{input: "current_date", want: "CURRENT_DATE"},
		{input: "NULL", want: "NULL"},
		{input: "0", want: "0"},
		{input: "-1.5", want: "-1.5"},
		{input: "1e3", want: "1e3"},
		{input: "'draft'", want: "'draft'"},
		{input: "''", want: "''"},
		{input: "'it''s'", want: "'it''s'"},
		{input: "x'00ff'", want: "x'00ff'"},
		{input: "draft", wantErr: true},
		{input: "'unterminated", wantErr: true},
		{input: "'a' || 'b'", wantErr: true},
		{input: "0); DROP TABLE videos; --", wantErr: true},
		{input: "(random())", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := DefaultLiteral(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDefault) {
					t.Errorf("DefaultLiteral(%q) error = %v, want ErrInvalidDefault", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DefaultLiteral(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("DefaultLiteral(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestOnDeleteAction(t *testing.T) {
	for _, a := range []string{"CASCADE", "cascade", "set  null", "SET DEFAULT", "RESTRICT", "NO ACTION"} {
		if _, err := OnDeleteAction(a); err != nil {
			t.Errorf("OnDeleteAction(%q) unexpected error: %v", a, err)
		}
	}
	if _, err := OnDeleteAction("DESTROY"); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("OnDeleteAction(DESTROY) error = %v, want ErrInvalidAction", err)
	}
}

func TestQuote(t *testing.T) {
	if got := Quote("it's"); got != "'it''s'" {
		t.Errorf("Quote() = %s, want 'it''s'", got)
	}
}

func TestCreateTable(t *testing.T) {
	table := schema.TableSchema{
		Name: "shared_links",
		Columns: []schema.Column{
			{Name: "id", Type: "TEXT", PrimaryKey: true},
			{Name: "video_id", Type: "TEXT", NotNull: true},
			{Name: "created_at", Type: "DATETIME", Default: schema.Default("CURRENT_TIMESTAMP")},
		},
		ForeignKeys: []schema.ForeignKey{
			{Column: "video_id", Reference: schema.Reference{Table: "videos", Column: "id"}, OnDelete: "cascade"},
		},
	}

	got, err := CreateTable(table)
	if err != nil {
		t.Fatalf("CreateTable() unexpected error: %v", err)
	}

	want := `CREATE TABLE IF NOT EXISTS "shared_links" (
  "id" TEXT PRIMARY KEY,
  "video_id" TEXT NOT NULL,
  "created_at" DATETIME DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE
)`
	if got != want {
		t.Errorf("CreateTable() =\n%s\nwant\n%s", got, want)
	}
}

func TestCreateTableRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		table schema.TableSchema
		want  error
	}{
		{
			name:  "bad table name",
			table: schema.TableSchema{Name: "bad name", Columns: []schema.Column{{Name: "id", Type: "TEXT"}}},
			want:  ErrInvalidIdentifier,
		},
		{
			name:  "bad column type",
			table: schema.TableSchema{Name: "t", Columns: []schema.Column{{Name: "id", Type: "TEXT)"}}},
			want:  ErrInvalidType,
		},
		{
			name:  "bad default",
			table: schema.TableSchema{Name: "t", Columns: []schema.Column{{Name: "id", Type: "TEXT", Default: schema.Default("now()")}}},
			want:  ErrInvalidDefault,
		},
		{
			name: "bad action",
			table: schema.TableSchema{
				Name:        "t",
				Columns:     []schema.Column{{Name: "p", Type: "TEXT"}},
				ForeignKeys: []schema.ForeignKey{{Column: "p", Reference: schema.Reference{Table: "parent", Column: "id"}, OnDelete: "EXPLODE"}},
			},
			want: ErrInvalidAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateTable(tt.table); !errors.Is(err, tt.want) {
				t.Errorf("CreateTable() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateIndex(t *testing.T) {
	got, err := CreateIndex("videos", schema.Index{Name: "idx_videos_filename", Columns: []string{"filename"}, Unique: true})
	if err != nil {
		t.Fatalf("CreateIndex() unexpected error: %v", err)
	}
	if want := `CREATE UNIQUE INDEX IF NOT EXISTS "idx_videos_filename" ON "videos" ("filename")`; got != want {
		t.Errorf("CreateIndex() = %s, want %s", got, want)
	}

	got, err = CreateIndex("shared_links", schema.Index{Name: "idx_expiry", Columns: []string{"video_id", "expires_at"}})
	if err != nil {
		t.Fatalf("CreateIndex() unexpected error: %v", err)
	}
	if want := `CREATE INDEX IF NOT EXISTS "idx_expiry" ON "shared_links" ("video_id", "expires_at")`; got != want {
		t.Errorf("CreateIndex() = %s, want %s", got, want)
	}

	if _, err := CreateIndex("videos", schema.Index{Name: "idx_empty"}); err == nil {
		t.Error("CreateIndex() with no columns: expected error but got none")
	}
}

func TestDropIndex(t *testing.T) {
	got, err := DropIndex("idx_old")
	if err != nil {
		t.Fatalf("DropIndex() unexpected error: %v", err)
	}
	if want := `DROP INDEX IF EXISTS "idx_old"`; got != want {
		t.Errorf("DropIndex() = %s, want %s", got, want)
	}
}

func TestAddColumn(t *testing.T) {
	tests := []struct {
		name   string
		column schema.Column
		want   string
	}{
		{
			name:   "not null with default",
			column: schema.Column{Name: "status", Type: "TEXT", NotNull: true, Default: schema.Default("'draft'")},
			want:   `ALTER TABLE "videos" ADD COLUMN "status" TEXT DEFAULT 'draft' NOT NULL`,
		},
		{
			name:   "not null without default gets empty string",
			column: schema.Column{Name: "codec", Type: "TEXT", NotNull: true},
			want:   `ALTER TABLE "videos" ADD COLUMN "codec" TEXT DEFAULT '' NOT NULL`,
		},
		{
			name:   "nullable with default",
			column: schema.Column{Name: "views", Type: "INTEGER", Default: schema.Default("0")},
			want:   `ALTER TABLE "videos" ADD COLUMN "views" INTEGER DEFAULT 0`,
		},
		{
			name:   "nullable without default",
			column: schema.Column{Name: "notes", Type: "TEXT"},
			want:   `ALTER TABLE "videos" ADD COLUMN "notes" TEXT`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddColumn("videos", tt.column)
			if err != nil {
				t.Fatalf("AddColumn() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("AddColumn() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAddColumnRejectsPrimaryKey(t *testing.T) {
	_, err := AddColumn("videos", schema.Column{Name: "id2", Type: "TEXT", PrimaryKey: true})
	if !errors.Is(err, ErrPrimaryKeyColumn) {
		t.Errorf("AddColumn() error = %v, want ErrPrimaryKeyColumn", err)
	}
}
