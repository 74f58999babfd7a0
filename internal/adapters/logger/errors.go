package logger

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrorEntry is one link of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// zerrLink matches the methods go.trai.ch/zerr exposes on *zerr.Error.
type zerrLink interface {
	Message() string
	Metadata() map[string]any
}

// collectErrorEntries walks err's chain. A standard error ends the walk,
// since its Error() text already contains its own causes.
func collectErrorEntries(err error) []ErrorEntry {
	var entries []ErrorEntry
	// zerr.With on a plain error produces an unnamed wrapper; its metadata belongs to the next link.
	var pending map[string]any

	for current := err; current != nil; current = errors.Unwrap(current) {
		link, ok := current.(zerrLink)
		if !ok {
			entries = append(entries, ErrorEntry{Message: current.Error(), Metadata: pending})
			break
		}
		if link.Message() == "" {
			pending = mergeMetadata(pending, link.Metadata())
			continue
		}
		entries = append(entries, ErrorEntry{
			Message:  link.Message(),
			Metadata: mergeMetadata(link.Metadata(), pending),
		})
		pending = nil
	}
	return entries
}

func mergeMetadata(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string
	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")
		if i == 0 {
			lines = append(lines, "Error: "+msgLines[0])
			for _, line := range msgLines[1:] {
				lines = append(lines, "       "+line)
			}
			lines = append(lines, formatMetadata(entry.Metadata, "       ")...)
			continue
		}
		if i == 1 {
			lines = append(lines, "", "  Caused by:")
		}
		lines = append(lines, "    → "+msgLines[0])
		for _, line := range msgLines[1:] {
			lines = append(lines, "      "+line)
		}
		lines = append(lines, formatMetadata(entry.Metadata, "      ")...)
	}
	return strings.Join(lines, "\n")
}

func formatMetadata(meta map[string]any, indent string) []string {
	if len(meta) == 0 {
		return nil
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s%s: %v", indent, k, meta[k]))
	}
	return lines
}
