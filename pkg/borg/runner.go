// Package borg wraps invocation of the external borg binary and the
// interpretation of its textual report. All parsing and classification is
// isolated here so a structured report mode can replace it later without
// touching the policy engine.
package borg

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// CreateOptions describes one `borg create` invocation.
type CreateOptions struct {
	Repo        string   // repository location, carried in BORG_REPO
	Passphrase  string   // carried in BORG_PASSPHRASE if non-empty
	Archive     string   // archive name, addressed as ::<name>
	Sources     []string // source paths to back up
	ExcludeFile string   // optional --exclude-from file
	Compression string   // --compression value
	ExtraArgs   []string // free-form additional arguments
	DryRun      bool     // skip the invocation entirely
}

// Result is the captured outcome of one invocation. Output holds stdout
// and stderr merged, the form the stats parser and classifier consume.
type Result struct {
	ExitCode int
	Output   string
}

// Runner invokes the backup tool. Production code uses ExecRunner; tests
// substitute a fake.
type Runner interface {
	// Create runs `borg create --stats`. A non-nil error means the process
	// could not even be started; a nonzero exit code is not an error.
	Create(ctx context.Context, opts CreateOptions) (Result, error)
}

// ExecRunner runs the real borg binary.
type ExecRunner struct {
	// Binary overrides the executable name, default "borg".
	Binary string
	logger *zap.Logger
}

// NewExecRunner creates a Runner around the borg binary on PATH.
func NewExecRunner(lg *zap.Logger) *ExecRunner {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &ExecRunner{Binary: "borg", logger: lg}
}

// Args builds the argument vector for the invocation, without the binary.
func (o CreateOptions) Args() []string {
	args := []string{"create", "--stats", "--compression=" + o.Compression}
	if o.ExcludeFile != "" {
		args = append(args, "--exclude-from", o.ExcludeFile)
	}
	args = append(args, o.ExtraArgs...)
	args = append(args, "::"+o.Archive)
	args = append(args, o.Sources...)
	return args
}

func (r *ExecRunner) Create(ctx context.Context, opts CreateOptions) (Result, error) {
	args := opts.Args()
	r.logger.Info("borg create",
		zap.String("binary", r.Binary),
		zap.Strings("args", args),
		zap.Bool("dryRun", opts.DryRun))

	if opts.DryRun {
		return Result{ExitCode: 0, Output: ""}, nil
	}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Env = append(os.Environ(), "BORG_REPO="+opts.Repo)
	if opts.Passphrase != "" {
		cmd.Env = append(cmd.Env, "BORG_PASSPHRASE="+opts.Passphrase)
	}

	// stdout and stderr merged: borg writes stats to stderr.
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{ExitCode: exitErr.ExitCode(), Output: string(out)}, nil
		}
		// binary missing, permission problems: the process never ran
		return Result{}, err
	}
	return Result{ExitCode: 0, Output: string(out)}, nil
}
