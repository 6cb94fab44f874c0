package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Default output file names.
const (
	DefaultExportOutput     = "project_conversations.json"
	DefaultNonProjectOutput = "non_project_conversations.json"
)

// WriteJSON writes v to path as two-space indented JSON and
// returns the file size. The document is written to a temporary
// file in the same directory and renamed into place, so readers
// never observe a partial file.
func WriteJSON(path string, v any) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	enc := json.NewEncoder(bw)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return 0, fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("renaming into %s: %w", path, err)
	}
	tmpPath = ""

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// DefaultProjectOutput derives the single-project output file
// name from a project name: lowercased, with every character other
// than a letter, digit, '-' or '_' replaced by '_'.
func DefaultProjectOutput(name string) string {
	if name == "" {
		name = "project"
	}
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) ||
			r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.ToLower(name))
	return safe + "_conversations.json"
}
