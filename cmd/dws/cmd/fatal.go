package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/status"
)

var (
	// globals used to patch over calls to os.Exit() during test

	logFatalln = log.Fatalln
	logFatalf  = log.Fatalf
	osExit     = os.Exit

	// infoLogger wraps informative messages to os.Stderr without cluttering expected output
	infoLogger = log.New(os.Stderr, "", 0)
)

// exit codes, by error category
const (
	exitError         = 1
	exitConfiguration = 2
	exitInvalidArg    = 3
	exitMismatch      = 4
	exitStepFailed    = 5
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, status.ErrConfiguration), errors.Is(err, status.ErrNotWorkspace):
		return exitConfiguration
	case errors.Is(err, status.ErrInvalidArgument), errors.Is(err, status.ErrTagExists),
		errors.Is(err, status.ErrSnapshotNotFound), errors.Is(err, status.ErrResourceNotFound):
		return exitInvalidArg
	case errors.Is(err, status.ErrContentMismatch), errors.Is(err, status.ErrPrecheckFailed):
		return exitMismatch
	case errors.Is(err, status.ErrStepFailed):
		return exitStepFailed
	default:
		return exitError
	}
}

func wrapFatalln(msg string, err error) {
	if err == nil {
		logFatalln(msg)
		return
	}
	wrapFatalWithCodef(exitCode(err), "%v", fmt.Errorf(msg+": %w", err))
}

func wrapFatalWithCodef(code int, format string, args ...interface{}) {
	_, _ = fmt.Fprintln(os.Stderr, color.RedString(format, args...))
	osExit(code)
}

func warnf(format string, args ...interface{}) {
	infoLogger.Println(color.YellowString(format, args...))
}
