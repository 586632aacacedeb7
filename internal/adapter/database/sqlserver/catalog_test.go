package sqlserver

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/smartystreets/goconvey/convey"
)

func tableColumnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"schema_name", "table_name", "column_name", "type_name",
		"max_length", "precision", "scale", "is_nullable", "is_identity",
		"seed_value", "increment_value",
	})
}

func TestCatalogTables(t *testing.T) {
	Convey("Given the catalog reader", t, func() {
		db, mock, err := sqlmock.New()
		So(err, ShouldBeNil)
		defer db.Close()

		cat := NewCatalog(db)
		ctx := context.Background()

		Convey("When the catalog returns columns for two tables", func() {
			mock.ExpectQuery("sys.identity_columns").WillReturnRows(tableColumnRows().
				AddRow("dbo", "Customers", "CustomerId", "varchar", 20, 0, 0, false, false, int64(1), int64(1)).
				AddRow("dbo", "Customers", "Name", "nvarchar", 100, 0, 0, true, false, int64(1), int64(1)).
				AddRow("dbo", "Orders", "OrderId", "int", 4, 10, 0, false, true, int64(1000), int64(5)).
				AddRow("dbo", "Orders", "Total", "decimal", 9, 18, 2, true, false, int64(1), int64(1)))
			mock.ExpectQuery("is_primary_key = 1").WillReturnRows(
				sqlmock.NewRows([]string{"schema_name", "table_name", "constraint_name", "is_clustered", "column_name", "is_descending_key"}).
					AddRow("dbo", "Orders", "PK_Orders", true, "OrderId", false))

			tables, err := cat.Tables(ctx)

			Convey("It should group columns by table in catalog order", func() {
				So(err, ShouldBeNil)
				So(len(tables), ShouldEqual, 2)
				So(tables[0].QualifiedName(), ShouldEqual, "[dbo].[Customers]")
				So(len(tables[0].Columns), ShouldEqual, 2)
				So(tables[1].QualifiedName(), ShouldEqual, "[dbo].[Orders]")
				So(tables[1].Columns[0].Name, ShouldEqual, "OrderId")
			})

			Convey("It should preserve identity seed and increment as reported", func() {
				identity := tables[1].IdentityColumn()
				So(identity, ShouldNotBeNil)
				So(identity.IdentitySeed, ShouldEqual, 1000)
				So(identity.IdentityIncrement, ShouldEqual, 5)
			})

			Convey("It should attach primary keys only where present", func() {
				So(tables[0].PrimaryKey, ShouldBeNil)
				So(tables[1].PrimaryKey, ShouldNotBeNil)
				So(tables[1].PrimaryKey.Name, ShouldEqual, "PK_Orders")
				So(tables[1].PrimaryKey.IsClustered, ShouldBeTrue)
			})
		})

		Convey("When the column query fails", func() {
			mock.ExpectQuery("sys.identity_columns").WillReturnError(errors.New("login failed"))

			_, err := cat.Tables(ctx)

			Convey("It should surface the error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "query tables")
			})
		})
	})
}

func TestCatalogForeignKeys(t *testing.T) {
	Convey("Given the catalog reader", t, func() {
		db, mock, err := sqlmock.New()
		So(err, ShouldBeNil)
		defer db.Close()

		cat := NewCatalog(db)

		Convey("When one constraint spans two column pairs", func() {
			mock.ExpectQuery("sys.foreign_keys fk").WillReturnRows(
				sqlmock.NewRows([]string{"constraint_name", "parent_schema", "parent_table", "parent_column", "referenced_schema", "referenced_table", "referenced_column"}).
					AddRow("FK_Lines_Orders", "dbo", "OrderLines", "OrderId", "dbo", "Orders", "OrderId").
					AddRow("FK_Lines_Orders", "dbo", "OrderLines", "TenantId", "dbo", "Orders", "TenantId").
					AddRow("FK_Orders_Customers", "dbo", "Orders", "CustomerId", "dbo", "Customers", "CustomerId"))

			fks, err := cat.ForeignKeys(context.Background())

			Convey("It should group the pairs under one descriptor", func() {
				So(err, ShouldBeNil)
				So(len(fks), ShouldEqual, 2)
				So(fks[0].Name, ShouldEqual, "FK_Lines_Orders")
				So(len(fks[0].Columns), ShouldEqual, 2)
				So(fks[0].Columns[1].Parent, ShouldEqual, "TenantId")
				So(len(fks[1].Columns), ShouldEqual, 1)
			})
		})
	})
}

func TestCatalogIndexes(t *testing.T) {
	Convey("Given the catalog reader", t, func() {
		db, mock, err := sqlmock.New()
		So(err, ShouldBeNil)
		defer db.Close()

		cat := NewCatalog(db)

		Convey("When an index has multiple key columns", func() {
			mock.ExpectQuery("is_unique_constraint = 0").WillReturnRows(
				sqlmock.NewRows([]string{"schema_name", "table_name", "index_name", "is_unique", "is_clustered", "column_name", "is_descending_key"}).
					AddRow("dbo", "Orders", "IX_Orders_Cust", false, false, "CustomerId", false).
					AddRow("dbo", "Orders", "IX_Orders_Cust", false, false, "CreatedAt", true))

			indexes, err := cat.Indexes(context.Background())

			Convey("It should group the key columns in ordinal order", func() {
				So(err, ShouldBeNil)
				So(len(indexes), ShouldEqual, 1)
				So(len(indexes[0].Columns), ShouldEqual, 2)
				So(indexes[0].Columns[1].Name, ShouldEqual, "CreatedAt")
				So(indexes[0].Columns[1].Descending, ShouldBeTrue)
			})
		})
	})
}
