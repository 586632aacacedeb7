package sqlserver

import (
	"fmt"
	"io"
	"strings"
	"time"
)

func writeHeader(w io.Writer, database, server string, generatedAt time.Time) {
	fmt.Fprintf(w, "%s\n", bannerLine)
	fmt.Fprintf(w, "-- Database: %s\n", database)
	fmt.Fprintf(w, "-- Server: %s\n", server)
	fmt.Fprintf(w, "-- Generated: %s\n", generatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "%s\n", bannerLine)
}

// writeTableDDL emits the drop-if-exists guard, the CREATE TABLE statement and
// the primary key constraint for one table.
func writeTableDDL(w io.Writer, t *TableDescriptor) {
	name := t.QualifiedName()

	fmt.Fprintf(w, "-- Table: %s\n", name)
	fmt.Fprintf(w, "IF OBJECT_ID('%s', 'U') IS NOT NULL\n    DROP TABLE %s;\nGO\n\n", name, name)

	fmt.Fprintf(w, "CREATE TABLE %s (\n", name)
	for i := range t.Columns {
		line := columnDDL(&t.Columns[i])
		if i < len(t.Columns)-1 {
			line += ","
		}
		fmt.Fprintf(w, "    %s\n", line)
	}
	fmt.Fprint(w, ");\nGO\n\n")

	if t.PrimaryKey != nil {
		writePrimaryKey(w, t)
	}
}

func columnDDL(col *ColumnDescriptor) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", col.Name, columnTypeDDL(col))
	if col.IsIdentity {
		fmt.Fprintf(&b, " IDENTITY(%d,%d)", col.IdentitySeed, col.IdentityIncrement)
	}
	if col.IsNullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}

	return b.String()
}

// columnTypeDDL renders the declared type with its length, precision or scale
// modifier. The -1 length sentinel always renders as MAX; nvarchar/nchar
// lengths are reported in bytes and halved to characters.
func columnTypeDDL(col *ColumnDescriptor) string {
	switch col.TypeName {
	case "varchar", "char", "varbinary", "binary":
		if col.MaxLength == maxLengthSentinel {
			return col.TypeName + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", col.TypeName, col.MaxLength)
	case "nvarchar", "nchar":
		if col.MaxLength == maxLengthSentinel {
			return col.TypeName + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", col.TypeName, col.MaxLength/2)
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d,%d)", col.TypeName, col.Precision, col.Scale)
	case "datetime2", "datetimeoffset", "time":
		return fmt.Sprintf("%s(%d)", col.TypeName, col.Scale)
	default:
		return col.TypeName
	}
}

func writePrimaryKey(w io.Writer, t *TableDescriptor) {
	pk := t.PrimaryKey
	clustering := "NONCLUSTERED"
	if pk.IsClustered {
		clustering = "CLUSTERED"
	}

	fmt.Fprintf(w, "ALTER TABLE %s ADD CONSTRAINT [%s] PRIMARY KEY %s (%s);\nGO\n\n",
		t.QualifiedName(), pk.Name, clustering, indexColumnList(pk.Columns))
}

func indexColumnList(cols []IndexColumn) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		direction := "ASC"
		if col.Descending {
			direction = "DESC"
		}
		parts[i] = fmt.Sprintf("[%s] %s", col.Name, direction)
	}
	return strings.Join(parts, ", ")
}

func writeDefaultConstraint(w io.Writer, d *DefaultConstraint) {
	fmt.Fprintf(w, "ALTER TABLE [%s].[%s] ADD CONSTRAINT [%s] DEFAULT %s FOR [%s];\nGO\n\n",
		d.Schema, d.Table, d.Name, d.Definition, d.Column)
}

func writeIndex(w io.Writer, idx *IndexDescriptor) {
	var b strings.Builder

	b.WriteString("CREATE ")
	if idx.IsUnique {
		b.WriteString("UNIQUE ")
	}
	if idx.IsClustered {
		b.WriteString("CLUSTERED ")
	} else {
		b.WriteString("NONCLUSTERED ")
	}
	fmt.Fprintf(&b, "INDEX [%s] ON [%s].[%s] (%s);", idx.Name, idx.Schema, idx.Table, indexColumnList(idx.Columns))

	fmt.Fprintf(w, "%s\nGO\n\n", b.String())
}

var dropKeywords = map[string]struct {
	objectType string
	statement  string
}{
	"PROCEDURE": {"P", "DROP PROCEDURE"},
	"VIEW":      {"V", "DROP VIEW"},
	"TRIGGER":   {"TR", "DROP TRIGGER"},
}

// writeProgrammable emits a drop-if-exists guard followed by the stored
// definition verbatim.
func writeProgrammable(w io.Writer, obj *ProgrammableObject) {
	drop := dropKeywords[obj.Kind]
	name := fmt.Sprintf("[%s].[%s]", obj.Schema, obj.Name)

	fmt.Fprintf(w, "IF OBJECT_ID('%s', '%s') IS NOT NULL\n    %s %s;\nGO\n\n",
		name, drop.objectType, drop.statement, name)
	fmt.Fprintf(w, "%s\nGO\n\n", strings.TrimRight(obj.Definition, "\r\n"))
}

// writeForeignKey emits one ALTER TABLE ... FOREIGN KEY statement. Foreign
// keys are written last so every referenced table already exists and all data
// is loaded when the script is replayed sequentially.
func writeForeignKey(w io.Writer, fk *ForeignKeyDescriptor) {
	parents := make([]string, len(fk.Columns))
	referenced := make([]string, len(fk.Columns))
	for i, col := range fk.Columns {
		parents[i] = "[" + col.Parent + "]"
		referenced[i] = "[" + col.Referenced + "]"
	}

	fmt.Fprintf(w, "ALTER TABLE [%s].[%s] WITH CHECK ADD CONSTRAINT [%s] FOREIGN KEY (%s) REFERENCES [%s].[%s] (%s);\nGO\n\n",
		fk.Schema, fk.Table, fk.Name,
		strings.Join(parents, ", "),
		fk.RefSchema, fk.RefTable,
		strings.Join(referenced, ", "))
}
