package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/semmidev/sqlscribe/internal/config"
	"github.com/semmidev/sqlscribe/internal/domain"
)

type Options struct {
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Strategy implements domain.Strategy for MySQL and MariaDB. Credentials are
// validated and the server is reached through the driver first; the script
// itself comes from mysqldump, which already emits dependency-safe,
// replayable SQL.
type Strategy struct {
	cfg    *config.DatabaseConfig
	opts   Options
	logger Logger
}

func New(cfg *config.DatabaseConfig, opts Options, logger Logger) *Strategy {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 600 * time.Second
	}
	return &Strategy{cfg: cfg, opts: opts, logger: logger}
}

func (s *Strategy) GetName() string {
	return s.cfg.Name
}

func (s *Strategy) GetType() string {
	return "mysql"
}

func (s *Strategy) Backup(ctx context.Context, outputPath string) *domain.BackupResult {
	result := &domain.BackupResult{DatabaseName: s.cfg.Name}

	if err := s.Ping(ctx); err != nil {
		result.Error = err.Error()
		return result
	}

	dumpCtx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	args := []string{
		fmt.Sprintf("--host=%s", s.cfg.Host),
		fmt.Sprintf("--port=%d", s.cfg.Port),
		fmt.Sprintf("--user=%s", s.cfg.Username),
		fmt.Sprintf("--password=%s", s.cfg.Password),
		"--single-transaction",
		"--quick",
		"--lock-tables=false",
		"--routines",
		"--triggers",
		"--events",
		fmt.Sprintf("--result-file=%s", outputPath),
		s.databaseName(),
	}

	cmd := exec.CommandContext(dumpCtx, "mysqldump", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		if errors.Is(dumpCtx.Err(), context.DeadlineExceeded) {
			result.Error = domain.NewBackupError(domain.ErrTimeout, "mysqldump",
				fmt.Errorf("exceeded %s timeout", s.opts.QueryTimeout)).Error()
		} else {
			result.Error = domain.NewBackupError(domain.ErrExtraction, "mysqldump",
				fmt.Errorf("%w, output: %s", err, string(output))).Error()
		}
		return result
	}

	result.Success = true
	result.OutputFile = outputPath
	return result
}

func (s *Strategy) Ping(ctx context.Context) error {
	if err := validateCredentials(s.cfg); err != nil {
		return err
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?timeout=%s",
		s.cfg.Username, s.cfg.Password, s.cfg.Host, s.cfg.Port, s.databaseName(), s.opts.ConnectTimeout)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return domain.NewBackupError(domain.ErrConnection, "open connection", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.NewBackupError(domain.ErrTimeout, "connect", err)
		}
		return domain.NewBackupError(domain.ErrConnection, "connect", err)
	}
	return nil
}

func (s *Strategy) databaseName() string {
	if s.cfg.Database != "" {
		return s.cfg.Database
	}
	return s.cfg.Name
}

func validateCredentials(cfg *config.DatabaseConfig) error {
	if cfg.Username == "" || cfg.Password == "" {
		return domain.NewBackupError(domain.ErrConfiguration, "validate credentials",
			errors.New("username and password are required"))
	}
	if config.HasPlaceholder(cfg.Username) || config.HasPlaceholder(cfg.Password) {
		return domain.NewBackupError(domain.ErrConfiguration, "validate credentials",
			errors.New("credentials contain unresolved ${...} placeholders"))
	}
	return nil
}
