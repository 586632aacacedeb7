package sqlserver

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/smartystreets/goconvey/convey"
)

func expectCount(mock sqlmock.Sqlmock, table string, count int64) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT_BIG(*) FROM "+table)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestWriteTableData(t *testing.T) {
	Convey("Given the data emitter", t, func() {
		db, mock, err := sqlmock.New()
		So(err, ShouldBeNil)
		defer db.Close()

		cat := NewCatalog(db)
		table := ordersTable()
		ctx := context.Background()

		rowsQuery := regexp.QuoteMeta("SELECT [OrderId], [CustomerId], [Total] FROM [dbo].[Orders]")

		Convey("When the table has zero rows", func() {
			expectCount(mock, "[dbo].[Orders]", 0)

			var buf bytes.Buffer
			err := writeTableData(ctx, &buf, cat, &table, 400)

			Convey("It should emit nothing at all", func() {
				So(err, ShouldBeNil)
				So(buf.String(), ShouldBeEmpty)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When dumping two rows of an identity table", func() {
			expectCount(mock, "[dbo].[Orders]", 2)
			mock.ExpectQuery(rowsQuery).WillReturnRows(
				sqlmock.NewRows([]string{"OrderId", "CustomerId", "Total"}).
					AddRow(int64(1), "A", []byte("10.50")).
					AddRow(int64(2), "O'Brien", []byte("20.00")))

			var buf bytes.Buffer
			err := writeTableData(ctx, &buf, cat, &table, 400)
			script := buf.String()

			Convey("It should bracket the inserts with one identity toggle pair", func() {
				So(err, ShouldBeNil)
				So(strings.Count(script, "SET IDENTITY_INSERT [dbo].[Orders] ON;"), ShouldEqual, 1)
				So(strings.Count(script, "SET IDENTITY_INSERT [dbo].[Orders] OFF;"), ShouldEqual, 1)
				So(strings.Index(script, "ON;"), ShouldBeLessThan, strings.Index(script, "INSERT INTO"))
				So(strings.Index(script, "OFF;"), ShouldBeGreaterThan, strings.LastIndex(script, "INSERT INTO"))
			})

			Convey("It should name columns explicitly and escape values", func() {
				So(script, ShouldContainSubstring,
					"INSERT INTO [dbo].[Orders] ([OrderId], [CustomerId], [Total]) VALUES (1, 'A', 10.50);")
				So(script, ShouldContainSubstring,
					"INSERT INTO [dbo].[Orders] ([OrderId], [CustomerId], [Total]) VALUES (2, 'O''Brien', 20.00);")
			})
		})

		Convey("When the row count exceeds the batch size", func() {
			expectCount(mock, "[dbo].[Orders]", 5)
			rows := sqlmock.NewRows([]string{"OrderId", "CustomerId", "Total"})
			for i := 1; i <= 5; i++ {
				rows.AddRow(int64(i), "C", []byte("1.00"))
			}
			mock.ExpectQuery(rowsQuery).WillReturnRows(rows)

			var buf bytes.Buffer
			err := writeTableData(ctx, &buf, cat, &table, 2)
			script := buf.String()

			Convey("It should separate every batch and still toggle identity once", func() {
				So(err, ShouldBeNil)
				So(strings.Count(script, "INSERT INTO"), ShouldEqual, 5)
				// Two full batches, the trailing partial batch, and the
				// separators after each identity toggle.
				So(strings.Count(script, "GO\n"), ShouldEqual, 5)
				So(strings.Count(script, "IDENTITY_INSERT"), ShouldEqual, 2)
			})
		})

		Convey("When the table has no identity column", func() {
			table.Columns[0].IsIdentity = false
			expectCount(mock, "[dbo].[Orders]", 1)
			mock.ExpectQuery(rowsQuery).WillReturnRows(
				sqlmock.NewRows([]string{"OrderId", "CustomerId", "Total"}).
					AddRow(int64(1), "A", []byte("10.50")))

			var buf bytes.Buffer
			err := writeTableData(ctx, &buf, cat, &table, 400)

			Convey("It should not emit identity toggles", func() {
				So(err, ShouldBeNil)
				So(buf.String(), ShouldNotContainSubstring, "IDENTITY_INSERT")
			})
		})

		Convey("When a value cannot be encoded", func() {
			expectCount(mock, "[dbo].[Orders]", 1)
			mock.ExpectQuery(rowsQuery).WillReturnRows(
				sqlmock.NewRows([]string{"OrderId", "CustomerId", "Total"}).
					AddRow(int64(1), struct{ X int }{1}, []byte("10.50")))

			var buf bytes.Buffer
			err := writeTableData(ctx, &buf, cat, &table, 400)

			Convey("It should fail the whole table", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unsupported value type")
			})
		})
	})
}
