package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/semmidev/sqlscribe/internal/config"
	"github.com/semmidev/sqlscribe/internal/domain"
)

// Options carries the policy knobs for one strategy instance. Zero values are
// replaced with the defaults from the configuration layer.
type Options struct {
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	NativeTimeout  time.Duration
	BatchSize      int
	NativeBackup   bool
}

type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Strategy implements domain.Strategy for SQL Server. One invocation walks
// Validating, Connecting, SchemaPhase, DataPhase and ExtrasPhase in order;
// configuration, connection, schema and data failures are terminal while
// extras failures are logged and skipped.
type Strategy struct {
	cfg    *config.DatabaseConfig
	opts   Options
	logger Logger

	// connect is replaceable in tests to inject a fake connection.
	connect func(ctx context.Context) (*sql.DB, error)
}

func New(cfg *config.DatabaseConfig, opts Options, logger Logger) *Strategy {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 600 * time.Second
	}
	if opts.NativeTimeout <= 0 {
		opts.NativeTimeout = 3600 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 400
	}

	s := &Strategy{cfg: cfg, opts: opts, logger: logger}
	s.connect = s.openConnection
	return s
}

func (s *Strategy) GetName() string {
	return s.cfg.Name
}

func (s *Strategy) GetType() string {
	return "sqlserver"
}

func (s *Strategy) databaseName() string {
	if s.cfg.Database != "" {
		return s.cfg.Database
	}
	return s.cfg.Name
}

// Backup produces the replayable SQL script and, when enabled, the native
// .bak artifact. The two deliverables carry separate success signals on the
// returned result.
func (s *Strategy) Backup(ctx context.Context, outputPath string) *domain.BackupResult {
	result := &domain.BackupResult{DatabaseName: s.cfg.Name}

	// Validating: reject bad credentials before any connection attempt.
	if err := s.validateCredentials(); err != nil {
		result.Error = err.Error()
		return result
	}

	db, err := s.connect(ctx)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer db.Close()

	dataDone := false
	if err := s.generateScript(ctx, db, outputPath, &dataDone); err != nil {
		// A truncated script that never reached the end of the data phase
		// looks deceptively complete; remove it.
		if !dataDone {
			os.Remove(outputPath)
		}
		result.Error = err.Error()
	} else {
		result.Success = true
		result.OutputFile = outputPath
	}

	if s.opts.NativeBackup {
		result.Native = s.runNativeBackup(ctx)
	}

	return result
}

func (s *Strategy) validateCredentials() error {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return domain.NewBackupError(domain.ErrConfiguration, "validate credentials",
			errors.New("username and password are required"))
	}
	if config.HasPlaceholder(s.cfg.Username) || config.HasPlaceholder(s.cfg.Password) {
		return domain.NewBackupError(domain.ErrConfiguration, "validate credentials",
			errors.New("credentials contain unresolved ${...} placeholders"))
	}
	return nil
}

func (s *Strategy) openConnection(ctx context.Context) (*sql.DB, error) {
	query := url.Values{}
	query.Add("database", s.databaseName())
	query.Add("app name", "sqlscribe")

	host := s.cfg.Host
	if s.cfg.Port != 0 {
		host = fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(s.cfg.Username, s.cfg.Password),
		Host:     host,
		Path:     s.cfg.Instance,
		RawQuery: query.Encode(),
	}

	db, err := sql.Open("sqlserver", u.String())
	if err != nil {
		return nil, domain.NewBackupError(domain.ErrConnection, "open connection", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewBackupError(domain.ErrTimeout, "connect", err)
		}
		return nil, domain.NewBackupError(domain.ErrConnection, "connect", err)
	}

	return db, nil
}

// Ping verifies connectivity without producing any artifact.
func (s *Strategy) Ping(ctx context.Context) error {
	if err := s.validateCredentials(); err != nil {
		return err
	}
	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	return db.Close()
}

func (s *Strategy) generateScript(ctx context.Context, db *sql.DB, outputPath string, dataDone *bool) error {
	w, err := newScriptWriter(outputPath)
	if err != nil {
		return domain.NewBackupError(domain.ErrExtraction, "create script file", err)
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	cat := NewCatalog(db)
	writeHeader(w, s.databaseName(), serverString(s.cfg), time.Now())

	// SchemaPhase: no data without schema.
	tables, err := cat.Tables(ctx)
	if err != nil {
		return classify("extract tables", err)
	}

	banner(w, "TABLES")
	for i := range tables {
		writeTableDDL(w, &tables[i])
	}
	s.logger.Infof("[%s] Scripted %d table(s)", s.cfg.Name, len(tables))

	// DataPhase.
	banner(w, "DATA")
	for i := range tables {
		if err := writeTableData(ctx, w, cat, &tables[i], s.opts.BatchSize); err != nil {
			return classify("dump table data", err)
		}
	}
	*dataDone = true

	s.writeExtras(ctx, w, cat)

	if err := w.Close(); err != nil {
		return domain.NewBackupError(domain.ErrExtraction, "finalize script file", err)
	}
	return nil
}

// writeExtras emits defaults, indexes, procedures, views, foreign keys and
// triggers. Each category is attempted independently: the script is still
// usable without any of them, so a failure is logged and the section skipped.
func (s *Strategy) writeExtras(ctx context.Context, w *scriptWriter, cat *Catalog) {
	if defaults, err := cat.DefaultConstraints(ctx); err != nil {
		s.warnSkipped("default constraints", err)
	} else if len(defaults) > 0 {
		banner(w, "DEFAULT CONSTRAINTS")
		for i := range defaults {
			writeDefaultConstraint(w, &defaults[i])
		}
	}

	if indexes, err := cat.Indexes(ctx); err != nil {
		s.warnSkipped("indexes", err)
	} else if len(indexes) > 0 {
		banner(w, "INDEXES")
		for i := range indexes {
			writeIndex(w, &indexes[i])
		}
	}

	if procedures, err := cat.Procedures(ctx); err != nil {
		s.warnSkipped("stored procedures", err)
	} else if len(procedures) > 0 {
		banner(w, "STORED PROCEDURES")
		for i := range procedures {
			writeProgrammable(w, &procedures[i])
		}
	}

	if views, err := cat.Views(ctx); err != nil {
		s.warnSkipped("views", err)
	} else if len(views) > 0 {
		banner(w, "VIEWS")
		for i := range views {
			writeProgrammable(w, &views[i])
		}
	}

	if fks, err := cat.ForeignKeys(ctx); err != nil {
		s.warnSkipped("foreign keys", err)
	} else if len(fks) > 0 {
		banner(w, "FOREIGN KEYS")
		for i := range fks {
			writeForeignKey(w, &fks[i])
		}
	}

	if triggers, err := cat.Triggers(ctx); err != nil {
		s.warnSkipped("triggers", err)
	} else if len(triggers) > 0 {
		banner(w, "TRIGGERS")
		for i := range triggers {
			writeProgrammable(w, &triggers[i])
		}
	}
}

func (s *Strategy) warnSkipped(category string, err error) {
	wrapped := domain.NewBackupError(domain.ErrExtraObject, "generate "+category, err)
	s.logger.Warnf("[%s] Skipping %s: %v", s.cfg.Name, category, wrapped)
}

func (s *Strategy) runNativeBackup(ctx context.Context) *domain.NativeBackupResult {
	s.logger.Infof("[%s] Starting native backup to engine default path", s.cfg.Name)

	invoker := &nativeInvoker{cfg: s.cfg, timeout: s.opts.NativeTimeout}
	native := invoker.Run(ctx, s.databaseName())

	switch {
	case native.Success:
		s.logger.Infof("[%s] Native backup completed", s.cfg.Name)
	case native.TimedOut:
		s.logger.Errorf("[%s] Native backup timed out: %s", s.cfg.Name, native.Error)
	default:
		s.logger.Errorf("[%s] Native backup failed: %s", s.cfg.Name, native.Error)
	}

	return native
}

// classify tags an extraction failure as a timeout when the phase deadline
// was exceeded.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewBackupError(domain.ErrTimeout, op, err)
	}
	return domain.NewBackupError(domain.ErrExtraction, op, err)
}
