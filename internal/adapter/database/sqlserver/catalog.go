package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// maxLengthSentinel is what sys.columns reports for varchar(max), nvarchar(max)
// and varbinary(max) columns.
const maxLengthSentinel = -1

type ColumnDescriptor struct {
	Name              string
	TypeName          string
	MaxLength         int
	Precision         int
	Scale             int
	IsNullable        bool
	IsIdentity        bool
	IdentitySeed      int64
	IdentityIncrement int64
}

type IndexColumn struct {
	Name       string
	Descending bool
}

type PrimaryKeyDescriptor struct {
	Name        string
	IsClustered bool
	Columns     []IndexColumn
}

type TableDescriptor struct {
	Schema     string
	Name       string
	Columns    []ColumnDescriptor
	PrimaryKey *PrimaryKeyDescriptor
}

// QualifiedName returns the bracket-quoted schema-qualified table name.
func (t *TableDescriptor) QualifiedName() string {
	return fmt.Sprintf("[%s].[%s]", t.Schema, t.Name)
}

// IdentityColumn returns the table's identity column, if any. SQL Server
// allows at most one per table.
func (t *TableDescriptor) IdentityColumn() *ColumnDescriptor {
	for i := range t.Columns {
		if t.Columns[i].IsIdentity {
			return &t.Columns[i]
		}
	}
	return nil
}

type DefaultConstraint struct {
	Schema     string
	Table      string
	Column     string
	Name       string
	Definition string
}

type IndexDescriptor struct {
	Schema      string
	Table       string
	Name        string
	IsUnique    bool
	IsClustered bool
	Columns     []IndexColumn
}

type ForeignKeyColumn struct {
	Parent     string
	Referenced string
}

// ForeignKeyDescriptor groups the per-column rows the catalog returns for one
// constraint into a single descriptor.
type ForeignKeyDescriptor struct {
	Name      string
	Schema    string
	Table     string
	RefSchema string
	RefTable  string
	Columns   []ForeignKeyColumn
}

// ProgrammableObject carries a procedure, view or trigger definition exactly
// as stored by the engine.
type ProgrammableObject struct {
	Schema     string
	Name       string
	Kind       string // "PROCEDURE", "VIEW" or "TRIGGER"
	Definition string
}

// Catalog reads schema metadata from the SQL Server system catalogs, scoped to
// user-created objects. All queries order by schema, object name and ordinal
// so repeated runs against an unchanged schema produce identical output.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

const tablesQuery = `
SELECT
    SCHEMA_NAME(t.schema_id) AS schema_name,
    t.name AS table_name,
    c.name AS column_name,
    TYPE_NAME(c.user_type_id) AS type_name,
    c.max_length,
    c.precision,
    c.scale,
    c.is_nullable,
    c.is_identity,
    ISNULL(CAST(ic.seed_value AS BIGINT), 1) AS seed_value,
    ISNULL(CAST(ic.increment_value AS BIGINT), 1) AS increment_value
FROM sys.tables t
INNER JOIN sys.columns c ON c.object_id = t.object_id
LEFT JOIN sys.identity_columns ic
    ON ic.object_id = c.object_id AND ic.column_id = c.column_id
WHERE t.is_ms_shipped = 0
ORDER BY SCHEMA_NAME(t.schema_id), t.name, c.column_id`

const primaryKeysQuery = `
SELECT
    SCHEMA_NAME(t.schema_id) AS schema_name,
    t.name AS table_name,
    i.name AS constraint_name,
    CASE WHEN i.type = 1 THEN 1 ELSE 0 END AS is_clustered,
    c.name AS column_name,
    ic.is_descending_key
FROM sys.indexes i
INNER JOIN sys.tables t ON i.object_id = t.object_id
INNER JOIN sys.index_columns ic
    ON ic.object_id = i.object_id AND ic.index_id = i.index_id
INNER JOIN sys.columns c
    ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE i.is_primary_key = 1 AND t.is_ms_shipped = 0
ORDER BY SCHEMA_NAME(t.schema_id), t.name, ic.key_ordinal`

// Tables returns every user table with its columns in ordinal order and its
// primary key, if any. This is the core extraction: a failure here is fatal
// to the whole strategy.
func (c *Catalog) Tables(ctx context.Context) ([]TableDescriptor, error) {
	rows, err := c.db.QueryContext(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []TableDescriptor
	index := make(map[string]int)

	for rows.Next() {
		var (
			schema, table string
			col           ColumnDescriptor
		)
		if err := rows.Scan(
			&schema, &table,
			&col.Name, &col.TypeName, &col.MaxLength, &col.Precision, &col.Scale,
			&col.IsNullable, &col.IsIdentity, &col.IdentitySeed, &col.IdentityIncrement,
		); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		key := schema + "." + table
		i, ok := index[key]
		if !ok {
			i = len(tables)
			index[key] = i
			tables = append(tables, TableDescriptor{Schema: schema, Name: table})
		}
		tables[i].Columns = append(tables[i].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	if err := c.attachPrimaryKeys(ctx, tables, index); err != nil {
		return nil, err
	}

	return tables, nil
}

func (c *Catalog) attachPrimaryKeys(ctx context.Context, tables []TableDescriptor, index map[string]int) error {
	rows, err := c.db.QueryContext(ctx, primaryKeysQuery)
	if err != nil {
		return fmt.Errorf("query primary keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			schema, table, name string
			clustered           bool
			col                 IndexColumn
		)
		if err := rows.Scan(&schema, &table, &name, &clustered, &col.Name, &col.Descending); err != nil {
			return fmt.Errorf("scan primary key row: %w", err)
		}

		i, ok := index[schema+"."+table]
		if !ok {
			continue
		}
		if tables[i].PrimaryKey == nil {
			tables[i].PrimaryKey = &PrimaryKeyDescriptor{Name: name, IsClustered: clustered}
		}
		tables[i].PrimaryKey.Columns = append(tables[i].PrimaryKey.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate primary key rows: %w", err)
	}

	return nil
}

const defaultsQuery = `
SELECT
    SCHEMA_NAME(t.schema_id) AS schema_name,
    t.name AS table_name,
    c.name AS column_name,
    dc.name AS constraint_name,
    dc.definition
FROM sys.default_constraints dc
INNER JOIN sys.tables t ON dc.parent_object_id = t.object_id
INNER JOIN sys.columns c
    ON c.object_id = t.object_id AND c.column_id = dc.parent_column_id
WHERE t.is_ms_shipped = 0
ORDER BY SCHEMA_NAME(t.schema_id), t.name, dc.name`

func (c *Catalog) DefaultConstraints(ctx context.Context) ([]DefaultConstraint, error) {
	rows, err := c.db.QueryContext(ctx, defaultsQuery)
	if err != nil {
		return nil, fmt.Errorf("query default constraints: %w", err)
	}
	defer rows.Close()

	var defaults []DefaultConstraint
	for rows.Next() {
		var d DefaultConstraint
		if err := rows.Scan(&d.Schema, &d.Table, &d.Column, &d.Name, &d.Definition); err != nil {
			return nil, fmt.Errorf("scan default constraint row: %w", err)
		}
		defaults = append(defaults, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate default constraint rows: %w", err)
	}

	return defaults, nil
}

const indexesQuery = `
SELECT
    SCHEMA_NAME(t.schema_id) AS schema_name,
    t.name AS table_name,
    i.name AS index_name,
    i.is_unique,
    CASE WHEN i.type = 1 THEN 1 ELSE 0 END AS is_clustered,
    c.name AS column_name,
    ic.is_descending_key
FROM sys.indexes i
INNER JOIN sys.tables t ON i.object_id = t.object_id
INNER JOIN sys.index_columns ic
    ON ic.object_id = i.object_id AND ic.index_id = i.index_id
INNER JOIN sys.columns c
    ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE i.is_primary_key = 0
  AND i.is_unique_constraint = 0
  AND i.type IN (1, 2)
  AND t.is_ms_shipped = 0
ORDER BY SCHEMA_NAME(t.schema_id), t.name, i.name, ic.key_ordinal`

// Indexes returns plain indexes. Primary-key and unique-constraint indexes
// are excluded; those are emitted as constraints with the table DDL.
func (c *Catalog) Indexes(ctx context.Context) ([]IndexDescriptor, error) {
	rows, err := c.db.QueryContext(ctx, indexesQuery)
	if err != nil {
		return nil, fmt.Errorf("query indexes: %w", err)
	}
	defer rows.Close()

	var indexes []IndexDescriptor
	seen := make(map[string]int)

	for rows.Next() {
		var (
			idx IndexDescriptor
			col IndexColumn
		)
		if err := rows.Scan(&idx.Schema, &idx.Table, &idx.Name, &idx.IsUnique, &idx.IsClustered, &col.Name, &col.Descending); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}

		key := idx.Schema + "." + idx.Table + "." + idx.Name
		i, ok := seen[key]
		if !ok {
			i = len(indexes)
			seen[key] = i
			indexes = append(indexes, idx)
		}
		indexes[i].Columns = append(indexes[i].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index rows: %w", err)
	}

	return indexes, nil
}

const foreignKeysQuery = `
SELECT
    fk.name AS constraint_name,
    SCHEMA_NAME(pt.schema_id) AS parent_schema,
    pt.name AS parent_table,
    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS parent_column,
    SCHEMA_NAME(rt.schema_id) AS referenced_schema,
    rt.name AS referenced_table,
    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS referenced_column
FROM sys.foreign_keys fk
INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
INNER JOIN sys.tables pt ON fk.parent_object_id = pt.object_id
INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
WHERE fk.is_ms_shipped = 0
ORDER BY SCHEMA_NAME(pt.schema_id), pt.name, fk.name, fkc.constraint_column_id`

// ForeignKeys groups the one-row-per-column-pair catalog output by constraint
// name: multiple pairs under the same name form one composite constraint.
func (c *Catalog) ForeignKeys(ctx context.Context) ([]ForeignKeyDescriptor, error) {
	rows, err := c.db.QueryContext(ctx, foreignKeysQuery)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKeyDescriptor
	seen := make(map[string]int)

	for rows.Next() {
		var (
			fk  ForeignKeyDescriptor
			col ForeignKeyColumn
		)
		if err := rows.Scan(&fk.Name, &fk.Schema, &fk.Table, &col.Parent, &fk.RefSchema, &fk.RefTable, &col.Referenced); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}

		key := fk.Schema + "." + fk.Table + "." + fk.Name
		i, ok := seen[key]
		if !ok {
			i = len(fks)
			seen[key] = i
			fks = append(fks, fk)
		}
		fks[i].Columns = append(fks[i].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	return fks, nil
}

const proceduresQuery = `
SELECT SCHEMA_NAME(p.schema_id), p.name, m.definition
FROM sys.procedures p
INNER JOIN sys.sql_modules m ON m.object_id = p.object_id
WHERE p.is_ms_shipped = 0
ORDER BY SCHEMA_NAME(p.schema_id), p.name`

const viewsQuery = `
SELECT SCHEMA_NAME(v.schema_id), v.name, m.definition
FROM sys.views v
INNER JOIN sys.sql_modules m ON m.object_id = v.object_id
WHERE v.is_ms_shipped = 0
ORDER BY SCHEMA_NAME(v.schema_id), v.name`

const triggersQuery = `
SELECT SCHEMA_NAME(o.schema_id), tr.name, m.definition
FROM sys.triggers tr
INNER JOIN sys.objects o ON o.object_id = tr.parent_id
INNER JOIN sys.sql_modules m ON m.object_id = tr.object_id
WHERE tr.is_ms_shipped = 0 AND tr.parent_class = 1
ORDER BY SCHEMA_NAME(o.schema_id), tr.name`

func (c *Catalog) Procedures(ctx context.Context) ([]ProgrammableObject, error) {
	return c.queryProgrammable(ctx, proceduresQuery, "PROCEDURE")
}

func (c *Catalog) Views(ctx context.Context) ([]ProgrammableObject, error) {
	return c.queryProgrammable(ctx, viewsQuery, "VIEW")
}

func (c *Catalog) Triggers(ctx context.Context) ([]ProgrammableObject, error) {
	return c.queryProgrammable(ctx, triggersQuery, "TRIGGER")
}

func (c *Catalog) queryProgrammable(ctx context.Context, query, kind string) ([]ProgrammableObject, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %ss: %w", kind, err)
	}
	defer rows.Close()

	var objects []ProgrammableObject
	for rows.Next() {
		obj := ProgrammableObject{Kind: kind}
		if err := rows.Scan(&obj.Schema, &obj.Name, &obj.Definition); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind, err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", kind, err)
	}

	return objects, nil
}

// CountRows returns the number of rows in a table so empty tables can be
// skipped by the data emitter.
func (c *Catalog) CountRows(ctx context.Context, table *TableDescriptor) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT_BIG(*) FROM %s", table.QualifiedName())
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table.QualifiedName(), err)
	}
	return count, nil
}

// Rows streams the full contents of a table in declared column order.
func (c *Catalog) Rows(ctx context.Context, table *TableDescriptor) (*sql.Rows, error) {
	cols := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		cols[i] = "[" + col.Name + "]"
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table.QualifiedName())

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", table.QualifiedName(), err)
	}
	return rows, nil
}
