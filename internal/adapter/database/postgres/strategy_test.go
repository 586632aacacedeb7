package postgres

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
	Convey("Given a PostgreSQL strategy", t, func() {
		cfg := &config.DatabaseConfig{
			Name: "analytics", Type: "postgresql",
			Host: "localhost", Port: 5432,
			Username: "backup", Password: "secret",
		}
		ctx := context.Background()

		Convey("When the password is an unresolved placeholder", func() {
			cfg.Password = "${ANALYTICS_DB_PASSWORD}"
			s := New(cfg, Options{}, nopLogger{})

			result := s.Backup(ctx, t.TempDir()+"/analytics.sql")

			Convey("It should fail as a configuration error before dumping", func() {
				So(result.Success, ShouldBeFalse)
				So(result.Error, ShouldContainSubstring, "placeholder")
				So(result.Error, ShouldContainSubstring, string(domain.ErrConfiguration))
			})
		})

		Convey("When the password is missing", func() {
			cfg.Password = ""
			s := New(cfg, Options{}, nopLogger{})

			So(s.Ping(ctx), ShouldNotBeNil)
		})
	})
}
