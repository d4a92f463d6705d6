package main

import (
	"context"
	"errors"

	"dbbench/internal/backup"
	"dbbench/internal/load"
	"dbbench/internal/schema"
	"dbbench/internal/storage"
)

// Exit codes.
const (
	exitOK           = 0
	exitError        = 1
	exitTranslation  = 2
	exitAborted      = 3
	exitConnection   = 4
	exitVerification = 5
	exitCancelled    = 6
)

// exitCode maps an error returned by a command onto the process exit code.
// Cancellation wins over everything else so an interrupted load exits 6 even
// though it also carries a partial report.
func exitCode(err error) int {
	var (
		te *schema.TranslationError
		ae *load.AbortedError
		ce *storage.ConnectionError
		vw *backup.VerificationWarning
		ck *backup.ChecksumError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitCancelled
	case errors.As(err, &te):
		return exitTranslation
	case errors.As(err, &ae):
		return exitAborted
	case errors.As(err, &ce):
		return exitConnection
	case errors.As(err, &vw), errors.As(err, &ck):
		return exitVerification
	}
	return exitError
}
