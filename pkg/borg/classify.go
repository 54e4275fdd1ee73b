package borg

import (
	"fmt"
	"regexp"
	"strings"
)

// Status is the execution outcome of one borg invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// maxNotedWarnings caps the soft-warning pattern list in the note.
const maxNotedWarnings = 5

// Soft warnings: borg completed but skipped or stumbled over individual
// files. Exit code 1 territory. The bare pattern text is kept next to the
// compiled regex since it ends up verbatim in the run note.
type warningPattern struct {
	text string
	re   *regexp.Regexp
}

var warningPatterns = []warningPattern{
	{`File changed while reading`, regexp.MustCompile(`(?i)File changed while reading`)},
	{`Permission denied`, regexp.MustCompile(`(?i)Permission denied`)},
	{`No such file or directory`, regexp.MustCompile(`(?i)No such file or directory`)},
	{`Input/output error`, regexp.MustCompile(`(?i)Input/output error`)},
	{`\b(socket|fifo|device):\b`, regexp.MustCompile(`(?i)\b(socket|fifo|device):\b`)},
	{`dangling symlink`, regexp.MustCompile(`(?i)dangling symlink`)},
}

// Hard errors: the repository or its infrastructure is unusable. These
// override the exit code entirely.
var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Repository.*is locked`),
	regexp.MustCompile(`(?i)Cache is locked`),
	regexp.MustCompile(`(?i)Invalid repository`),
	regexp.MustCompile(`(?i)Object with key .* not found`),
	regexp.MustCompile(`(?i)Segment checksum mismatch`),
	regexp.MustCompile(`(?i)No space left on device`),
	regexp.MustCompile(`(?i)Connection refused`),
	regexp.MustCompile(`(?i)name resolution`),
	regexp.MustCompile(`(?i)Passphrase`),
	regexp.MustCompile(`(?i)encryption key`),
}

// Classify assigns an execution status from the report text and exit code.
// Hard-error patterns dominate regardless of exit code; otherwise borg's
// own convention applies: 0 clean, 1 completed with warnings, anything
// else a failure.
func Classify(output string, rc int) (Status, string) {
	for _, p := range errorPatterns {
		if p.MatchString(output) {
			return StatusFailed, "hard-error:repo/infrastructure"
		}
	}
	if rc == 0 {
		return StatusSuccess, "ok"
	}
	if rc == 1 {
		var warns []string
		for _, p := range warningPatterns {
			if p.re.MatchString(output) {
				warns = append(warns, p.text)
			}
		}
		if len(warns) > 0 {
			if len(warns) > maxNotedWarnings {
				warns = warns[:maxNotedWarnings]
			}
			return StatusWarning, "soft-warnings:" + strings.Join(warns, ",")
		}
		return StatusWarning, "rc=1"
	}
	return StatusFailed, fmt.Sprintf("rc=%d", rc)
}
