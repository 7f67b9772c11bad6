package pgstore

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/store"
)

const parentTable = "network_data"

var columns = []string{"operateur", "x", "y", "g2", "g3", "g4"}

const createParent = `CREATE TABLE IF NOT EXISTS network_data (
	operateur VARCHAR(10) NOT NULL,
	x INT NOT NULL,
	y INT NOT NULL,
	g2 BOOLEAN NOT NULL DEFAULT FALSE,
	g3 BOOLEAN NOT NULL DEFAULT FALSE,
	g4 BOOLEAN NOT NULL DEFAULT FALSE
) PARTITION BY RANGE (x);`

const dropParent = `DROP TABLE IF EXISTS network_data CASCADE;`

// schemaStatements returns the DDL for the partitioned table, one child
// per span plus the default partition, each indexed on (x, y).
func schemaStatements(l partition.Layout) []string {
	stmts := []string{createParent}
	for _, s := range l.Spans() {
		tbl := pgx.Identifier{s.ID.Table()}.Sanitize()
		stmts = append(stmts,
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM (%d) TO (%d);",
				tbl, parentTable, int64(s.Lo), int64(s.Hi)),
		)
	}
	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s PARTITION OF %s DEFAULT;",
		pgx.Identifier{partition.Default.Table()}.Sanitize(), parentTable))

	for _, id := range l.All() {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (x, y);",
			pgx.Identifier{"idx_x_y_" + id.String()}.Sanitize(),
			pgx.Identifier{id.Table()}.Sanitize()))
	}
	return stmts
}

// selectRange reads one child table directly so the planner never has to
// prune partitions.
func selectRange(l partition.Layout, id partition.ID) (string, error) {
	if err := store.CheckPartition(l, id); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"SELECT operateur, x, y, g2, g3, g4 FROM %s WHERE x BETWEEN $1 AND $2 AND y BETWEEN $3 AND $4",
		pgx.Identifier{id.Table()}.Sanitize()), nil
}
