package mysql

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/sqlscribe/internal/config"
	"github.com/semmidev/sqlscribe/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

func TestStrategyValidation(t *testing.T) {
	Convey("Given a MySQL strategy", t, func() {
		cfg := &config.DatabaseConfig{
			Name: "inventory", Type: "mysql",
			Host: "localhost", Port: 3306,
			Username: "backup", Password: "secret",
		}
		ctx := context.Background()

		Convey("When the password is an unresolved placeholder", func() {
			cfg.Password = "${INVENTORY_DB_PASSWORD}"
			s := New(cfg, Options{}, nopLogger{})

			result := s.Backup(ctx, t.TempDir()+"/inventory.sql")

			Convey("It should fail as a configuration error before dumping", func() {
				So(result.Success, ShouldBeFalse)
				So(result.Error, ShouldContainSubstring, "placeholder")
				So(result.Error, ShouldContainSubstring, string(domain.ErrConfiguration))
			})
		})

		Convey("When the username is missing", func() {
			cfg.Username = ""
			s := New(cfg, Options{}, nopLogger{})

			So(s.Ping(ctx), ShouldNotBeNil)
		})
	})
}
