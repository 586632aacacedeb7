package domain

import "context"

// Strategy is the per-engine backup contract. Backup writes a replayable SQL
// script to outputPath and returns a result describing what was produced.
// Implementations own their connection for the duration of one invocation and
// must close it on every exit path.
type Strategy interface {
	Backup(ctx context.Context, outputPath string) *BackupResult
	GetName() string
	GetType() string
	Ping(ctx context.Context) error
}
