// Package cliexit maps gitrepo's sentinel error kinds to process exit
// codes and renders them for the terminal.
package cliexit

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/AlayaCare/git-black/gitrepo"
)

// Exit codes, one per error kind.
const (
	ExitSuccess             = 0
	ExitIndexNotEmpty       = 1
	ExitRepositoryAccess    = 2
	ExitBlameFailure        = 3
	ExitDiffInconsistency   = 4
	ExitCommitCreationError = 5
	ExitInternal            = 10
)

var colorError = color.New(color.FgRed, color.Bold)

// CodeFor classifies err against gitrepo's sentinel errors and returns
// the exit code that corresponds to it. A nil error maps to
// ExitSuccess; an unrecognized error maps to ExitInternal.
func CodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, gitrepo.ErrIndexNotEmpty):
		return ExitIndexNotEmpty
	case errors.Is(err, gitrepo.ErrRepositoryAccess):
		return ExitRepositoryAccess
	case errors.Is(err, gitrepo.ErrBlameFailure):
		return ExitBlameFailure
	case errors.Is(err, gitrepo.ErrDiffInconsistency):
		return ExitDiffInconsistency
	case errors.Is(err, gitrepo.ErrCommitCreationFailure):
		return ExitCommitCreationError
	default:
		return ExitInternal
	}
}

// Fatal prints err to stderr, colored unless noColor is set, and exits
// the process with the code CodeFor(err) returns. A nil err is a no-op
// and Fatal returns; otherwise it never returns.
func Fatal(err error, noColor bool) {
	if err == nil {
		return
	}

	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()
	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	fmt.Fprint(os.Stderr, colorError.Sprint("Error: "))
	fmt.Fprintln(os.Stderr, err)
	os.Exit(CodeFor(err))
}
