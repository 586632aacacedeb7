package sqlserver

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// batchSeparator terminates each statement group so very large tables never
// produce a single unexecutable batch.
const batchSeparator = "GO\n\n"

// writeTableData dumps the full contents of one table as batched INSERT
// statements. Tables with zero rows produce no output at all. When the table
// has an identity column, a single IDENTITY_INSERT ON/OFF pair brackets all
// batches, not each batch individually.
func writeTableData(ctx context.Context, w io.Writer, cat *Catalog, table *TableDescriptor, batchSize int) error {
	count, err := cat.CountRows(ctx, table)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	rows, err := cat.Rows(ctx, table)
	if err != nil {
		return err
	}
	defer rows.Close()

	name := table.QualifiedName()
	fmt.Fprintf(w, "-- Data for %s (%d rows)\n", name, count)

	identity := table.IdentityColumn()
	if identity != nil {
		fmt.Fprintf(w, "SET IDENTITY_INSERT %s ON;\n%s", name, batchSeparator)
	}

	// Columns are named explicitly so the INSERTs stay valid even if the
	// declared order in the script ever diverges from the catalog's.
	columnList := insertColumnList(table)

	written := 0
	for rows.Next() {
		values, err := scanRowLiterals(rows, table.Columns)
		if err != nil {
			return fmt.Errorf("row %d of %s: %w", written+1, name, err)
		}

		fmt.Fprintf(w, "INSERT INTO %s (%s) VALUES (%s);\n", name, columnList, strings.Join(values, ", "))

		written++
		if written%batchSize == 0 {
			fmt.Fprint(w, batchSeparator)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows of %s: %w", name, err)
	}

	if written%batchSize != 0 {
		fmt.Fprint(w, batchSeparator)
	}

	if identity != nil {
		fmt.Fprintf(w, "SET IDENTITY_INSERT %s OFF;\n%s", name, batchSeparator)
	}

	return nil
}

func insertColumnList(table *TableDescriptor) string {
	cols := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		cols[i] = "[" + col.Name + "]"
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRowLiterals scans one row into driver values and encodes each as a SQL
// literal. An unrecognized value type fails the whole table rather than
// emitting an unescaped literal.
func scanRowLiterals(row rowScanner, columns []ColumnDescriptor) ([]string, error) {
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	if err := row.Scan(pointers...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	literals := make([]string, len(columns))
	for i, value := range values {
		literal, err := EncodeLiteral(value, &columns[i])
		if err != nil {
			return nil, err
		}
		literals[i] = literal
	}

	return literals, nil
}
