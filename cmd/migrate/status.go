package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// testflowTables are reported by the status command in schema order.
var testflowTables = []string{"users", "tests", "questions", "answer_options", "test_results"}

// missingTable marks a table the applied migrations have not created.
const missingTable = -1

type tableCount struct {
	Table string
	Rows  int64
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countRows(ctx context.Context, db rowQuerier) ([]tableCount, error) {
	counts := make([]tableCount, 0, len(testflowTables))
	for _, table := range testflowTables {
		var n int64
		query := "SELECT COUNT(*) FROM " + pgx.Identifier{table}.Sanitize()
		if err := db.QueryRow(ctx, query).Scan(&n); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42P01" { // undefined_table
				counts = append(counts, tableCount{Table: table, Rows: missingTable})
				continue
			}
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts = append(counts, tableCount{Table: table, Rows: n})
	}
	return counts, nil
}

// writeStatus prints the schema version followed by one row per table.
// A zero version with hasVersion false means no migration was applied yet.
func writeStatus(w io.Writer, version uint, dirty, hasVersion bool, counts []tableCount) error {
	if hasVersion {
		fmt.Fprintf(w, "Version: %d, Dirty: %t\n", version, dirty)
	} else {
		fmt.Fprintln(w, "Version: none")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS")
	for _, c := range counts {
		if c.Rows == missingTable {
			fmt.Fprintf(tw, "%s\tmissing\n", c.Table)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\n", c.Table, c.Rows)
	}
	return tw.Flush()
}
