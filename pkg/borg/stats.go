package borg

import (
	"regexp"
	"strconv"
	"strings"
)

// Stats holds the counters extracted from a `borg create --stats` report.
// Fields are pointers: nil means the value could not be parsed, which is
// distinct from a genuine zero.
type Stats struct {
	FilesTotal   *int64 `json:"files_total,omitempty"`
	FilesAdded   *int64 `json:"files_added,omitempty"`
	FilesChanged *int64 `json:"files_changed,omitempty"`

	DurationSeconds *int64 `json:"duration_seconds,omitempty"`

	SizeOriginalBytes   *int64 `json:"size_original_bytes,omitempty"`
	SizeCompressedBytes *int64 `json:"size_compressed_bytes,omitempty"`
	SizeDedupBytes      *int64 `json:"size_dedup_bytes,omitempty"`

	// Raw full report text and the derived key/value map, kept for audit.
	Raw string            `json:"raw"`
	KV  map[string]string `json:"kv"`
}

var (
	sizeRe     = regexp.MustCompile(`(?i)([0-9]*\.?[0-9]+)\s*(B|kB|MB|GB|TB)`)
	nonDigitRe = regexp.MustCompile(`[^\d]`)
)

// Decimal (1000-based) multipliers, matching borg's own size formatting.
var sizeMultipliers = map[string]int64{
	"B":  1,
	"KB": 1000,
	"MB": 1000 * 1000,
	"GB": 1000 * 1000 * 1000,
	"TB": 1000 * 1000 * 1000 * 1000,
}

// SizeToBytes converts a "12.34 GB" style token to bytes. Returns nil if
// no size token is found.
func SizeToBytes(s string) *int64 {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	mul := sizeMultipliers[strings.ToUpper(m[2])]
	n := int64(val * float64(mul))
	return &n
}

// ParseStats extracts structured counters from the free-text report.
// Any field that cannot be parsed is left nil; parsing never fails.
func ParseStats(output string) Stats {
	stats := Stats{Raw: output, KV: map[string]string{}}

	for _, line := range strings.Split(output, "\n") {
		if k, v, ok := strings.Cut(line, ":"); ok {
			stats.KV[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}

	stats.FilesTotal = digitsToInt(stats.KV["number of files"])
	stats.FilesAdded = digitsToInt(stats.KV["added files"])
	stats.FilesChanged = digitsToInt(stats.KV["changed files"])

	if dur := stats.KV["duration"]; strings.HasSuffix(strings.ToLower(dur), "seconds") {
		fields := strings.Fields(dur)
		if len(fields) > 0 {
			if f, err := strconv.ParseFloat(fields[0], 64); err == nil {
				n := int64(f) // truncate to whole seconds
				stats.DurationSeconds = &n
			}
		}
	}

	// "This archive:" is followed by a line with three size columns:
	// original, compressed, deduplicated.
	lines := strings.Split(output, "\n")
	for i, ln := range lines {
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(ln)), "this archive") {
			continue
		}
		if i+1 < len(lines) {
			sizes := sizeRe.FindAllString(lines[i+1], -1)
			if len(sizes) >= 3 {
				stats.SizeOriginalBytes = SizeToBytes(sizes[0])
				stats.SizeCompressedBytes = SizeToBytes(sizes[1])
				stats.SizeDedupBytes = SizeToBytes(sizes[2])
			}
		}
		break
	}

	// Fallback: explicit key/value size lines.
	if v, ok := stats.KV["original size"]; ok && stats.SizeOriginalBytes == nil {
		stats.SizeOriginalBytes = SizeToBytes(v)
	}
	if v, ok := stats.KV["compressed size"]; ok && stats.SizeCompressedBytes == nil {
		stats.SizeCompressedBytes = SizeToBytes(v)
	}
	if v, ok := stats.KV["deduplicated size"]; ok && stats.SizeDedupBytes == nil {
		stats.SizeDedupBytes = SizeToBytes(v)
	}

	return stats
}

func digitsToInt(s string) *int64 {
	digits := nonDigitRe.ReplaceAllString(s, "")
	if digits == "" {
		return nil
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
