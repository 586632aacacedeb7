package domain

import "context"

// BackupResult is produced exactly once per strategy invocation and is never
// mutated afterwards. Script generation and the native engine backup are
// separate deliverables with separate success signals.
type BackupResult struct {
	DatabaseName string
	Success      bool
	OutputFile   string
	Error        string
	Native       *NativeBackupResult
}

// NativeBackupResult reports the outcome of the engine's own binary backup.
// Nil on a BackupResult means the native backup was not attempted.
type NativeBackupResult struct {
	Success  bool
	TimedOut bool
	Error    string
}

type BackupJob struct {
	DatabaseName string
	Schedule     string
	Strategy     Strategy
	BackupUC     BackupExecutor
}

type BackupExecutor interface {
	Execute(ctx context.Context) error
}
