// Package schema embeds the SQL migrations of the relational and analytics stores.
package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// File is one migration file.
type File struct {
	Name string
	SQL  string
}

// Postgres returns the PostgreSQL migrations in lexical order.
func Postgres() ([]File, error) {
	return read(PostgresFS, "postgres")
}

// Clickhouse returns the ClickHouse migrations in lexical order.
func Clickhouse() ([]File, error) {
	return read(ClickhouseFS, "clickhouse")
}

func read(fsys fs.FS, dir string) ([]File, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	files := make([]File, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		files = append(files, File{Name: name, SQL: string(data)})
	}
	return files, nil
}

// SplitStatements splits SQL content into individual statements by semicolon.
// The ClickHouse driver does not support multiquery in Exec.
//
// The splitter does NOT handle semicolons inside string literals, block
// comments or dollar-quoted strings. Migrations use -- comments only;
// ValidateNoSemicolonInStrings rejects the string literal case.
func SplitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// ValidateNoSemicolonInStrings returns an error if a single-quoted string
// contains a semicolon, which would break SplitStatements.
func ValidateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			// Escaped quote ''
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon found inside string literal - this breaks the migration splitter")
		}
	}
	return nil
}
