package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
app:
  name: sqlscribe
databases:
  - name: shop
    type: sqlserver
    host: localhost
    port: 1433
    username: sa
    password: secret
    enabled: true
    schedule: "0 0 2 * * *"
backup:
  local_path: /var/backups
`

func TestLoad(t *testing.T) {
	Convey("Given the configuration loader", t, func() {
		Convey("When loading a minimal valid file", func() {
			cfg, err := Load(writeConfigFile(t, validConfig))

			Convey("It should succeed", func() {
				So(err, ShouldBeNil)
				So(cfg.Databases[0].Name, ShouldEqual, "shop")
			})

			Convey("It should fill policy defaults", func() {
				So(cfg.Backup.BatchSize, ShouldEqual, 400)
				So(cfg.Backup.ConnectTimeout, ShouldEqual, 30*time.Second)
				So(cfg.Backup.QueryTimeout, ShouldEqual, 600*time.Second)
				So(cfg.Backup.NativeTimeout, ShouldEqual, 3600*time.Second)
				So(cfg.Backup.RetentionDays, ShouldEqual, 7)
				So(cfg.Backup.Compress, ShouldBeTrue)
			})

			Convey("Native backup should stay opt-in", func() {
				So(cfg.Backup.NativeBackup, ShouldBeFalse)
			})
		})

		Convey("When credentials reference environment variables", func() {
			t.Setenv("SQLSCRIBE_TEST_PASSWORD", "s3cr3t")

			cfg, err := Load(writeConfigFile(t, `
databases:
  - name: shop
    type: sqlserver
    host: localhost
    username: "${SQLSCRIBE_TEST_USER}"
    password: "${SQLSCRIBE_TEST_PASSWORD}"
backup:
  local_path: /var/backups
`))

			Convey("Set variables expand and unset ones stay verbatim", func() {
				So(err, ShouldBeNil)
				So(cfg.Databases[0].Password, ShouldEqual, "s3cr3t")
				So(cfg.Databases[0].Username, ShouldEqual, "${SQLSCRIBE_TEST_USER}")
				So(HasPlaceholder(cfg.Databases[0].Username), ShouldBeTrue)
				So(HasPlaceholder(cfg.Databases[0].Password), ShouldBeFalse)
			})
		})

		Convey("When the file does not exist", func() {
			_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("When no databases are configured", func() {
			_, err := Load(writeConfigFile(t, `
backup:
  local_path: /var/backups
`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "at least one database")
		})

		Convey("When the local path is missing", func() {
			_, err := Load(writeConfigFile(t, `
databases:
  - name: shop
    type: sqlserver
    host: localhost
`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "local_path")
		})

		Convey("When an enabled database has no schedule", func() {
			_, err := Load(writeConfigFile(t, `
databases:
  - name: shop
    type: sqlserver
    host: localhost
    enabled: true
backup:
  local_path: /var/backups
`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "schedule is required")
		})
	})
}

func TestEnabledFilters(t *testing.T) {
	Convey("Given a loaded configuration", t, func() {
		cfg := &Config{
			Databases: []DatabaseConfig{
				{Name: "shop", Enabled: true},
				{Name: "legacy", Enabled: false},
			},
			Backup: BackupConfig{
				UploadTargets: []UploadTarget{
					{Type: "s3", Enabled: false},
					{Type: "telegram", Enabled: true},
				},
			},
		}

		Convey("Only enabled databases are scheduled", func() {
			enabled := cfg.GetEnabledDatabases()
			So(len(enabled), ShouldEqual, 1)
			So(enabled[0].Name, ShouldEqual, "shop")
		})

		Convey("Only enabled upload targets are used", func() {
			targets := cfg.GetEnabledUploadTargets()
			So(len(targets), ShouldEqual, 1)
			So(targets[0].Type, ShouldEqual, "telegram")
		})
	})
}
