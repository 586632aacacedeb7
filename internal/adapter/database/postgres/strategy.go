package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	_ "github.com/lib/pq"

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

// Strategy implements domain.Strategy for PostgreSQL. Plain-format pg_dump
// output is used so the artifact stays a replayable SQL script.
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
	return "postgresql"
}

func (s *Strategy) Backup(ctx context.Context, outputPath string) *domain.BackupResult {
	result := &domain.BackupResult{DatabaseName: s.cfg.Name}

	if err := s.Ping(ctx); err != nil {
		result.Error = err.Error()
		return result
	}

	dumpCtx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	cmd := exec.CommandContext(dumpCtx, "pg_dump",
		fmt.Sprintf("--host=%s", s.cfg.Host),
		fmt.Sprintf("--port=%d", s.cfg.Port),
		fmt.Sprintf("--username=%s", s.cfg.Username),
		"--format=plain",
		"--no-owner",
		fmt.Sprintf("--file=%s", outputPath),
		s.databaseName(),
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", s.cfg.Password))

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		if errors.Is(dumpCtx.Err(), context.DeadlineExceeded) {
			result.Error = domain.NewBackupError(domain.ErrTimeout, "pg_dump",
				fmt.Errorf("exceeded %s timeout", s.opts.QueryTimeout)).Error()
		} else {
			result.Error = domain.NewBackupError(domain.ErrExtraction, "pg_dump",
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

	sslMode := s.cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password, s.databaseName(),
		sslMode, int(s.opts.ConnectTimeout.Seconds()))

	db, err := sql.Open("postgres", dsn)
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
