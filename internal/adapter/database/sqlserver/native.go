package sqlserver

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/semmidev/sqlscribe/internal/config"
	"github.com/semmidev/sqlscribe/internal/domain"
)

// nativeInvoker shells out to sqlcmd to produce the engine's own binary .bak
// artifact. The backup lands in SQL Server's default backup directory: a bare
// filename is passed so the engine resolves its own path. Success is
// determined solely by the utility's exit status.
type nativeInvoker struct {
	cfg     *config.DatabaseConfig
	timeout time.Duration

	// execute is replaceable in tests to avoid shelling out.
	execute func(ctx context.Context, cmd *exec.Cmd) ([]byte, error)
}

func (n *nativeInvoker) Run(ctx context.Context, database string) *domain.NativeBackupResult {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	execute := n.execute
	if execute == nil {
		execute = func(_ context.Context, cmd *exec.Cmd) ([]byte, error) {
			return cmd.CombinedOutput()
		}
	}

	query := fmt.Sprintf(
		"BACKUP DATABASE [%s] TO DISK = N'%s.bak' WITH FORMAT, INIT, NAME = N'%s-Full Database Backup', SKIP, COMPRESSION, STATS = 10;",
		database, database, database)

	cmd := exec.CommandContext(ctx, "sqlcmd",
		"-S", serverString(n.cfg),
		"-U", n.cfg.Username,
		"-P", n.cfg.Password,
		"-b",
		"-Q", query,
	)

	output, err := execute(ctx, cmd)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &domain.NativeBackupResult{
				TimedOut: true,
				Error:    fmt.Sprintf("native backup exceeded %s timeout", n.timeout),
			}
		}
		return &domain.NativeBackupResult{
			Error: fmt.Sprintf("sqlcmd failed: %v, output: %s", err, string(output)),
		}
	}

	return &domain.NativeBackupResult{Success: true}
}

// serverString renders the sqlcmd -S argument: "host\instance" for named
// instances, "host,port" for non-default ports, plain host otherwise.
func serverString(cfg *config.DatabaseConfig) string {
	if cfg.Instance != "" {
		return fmt.Sprintf("%s\\%s", cfg.Host, cfg.Instance)
	}
	if cfg.Port != 0 && cfg.Port != 1433 {
		return fmt.Sprintf("%s,%d", cfg.Host, cfg.Port)
	}
	return cfg.Host
}
