// Package httputil provides input validation and filename sanitization
// for values that end up in tool arguments or filesystem paths.
package httputil

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// formatIDPattern matches yt-dlp format selectors ("18", "137+140", "bv*[height<=720]+ba").
var formatIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_+\-/.,\[\]<>=*:!]+$`)

const maxFormatIDLen = 128

// ValidateURL checks that a URL is absolute, uses HTTP(S) and has a host.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("only HTTP and HTTPS URLs are supported, got %q", rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// ValidateFormatID checks that a format selector contains only characters
// yt-dlp uses in selectors. It never starts with "-" so it cannot be read as a flag.
func ValidateFormatID(id string) error {
	if id == "" {
		return fmt.Errorf("format_id cannot be empty")
	}
	if len(id) > maxFormatIDLen {
		return fmt.Errorf("format_id too long: %d characters", len(id))
	}
	if strings.HasPrefix(id, "-") {
		return fmt.Errorf("format_id cannot start with '-': %q", id)
	}
	if !formatIDPattern.MatchString(id) {
		return fmt.Errorf("format_id contains invalid characters: %q", id)
	}
	return nil
}

// SanitizeFilename removes path traversal and dangerous characters from a filename.
// Returns just the base name, stripped of any directory components.
func SanitizeFilename(name string) string {
	// Take only the base name to strip directory components
	name = filepath.Base(name)

	// Replace characters that are problematic on various OSes
	replacer := strings.NewReplacer(
		"..", "_",
		"/", "_",
		"\\", "_",
		"\x00", "",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(name)

	if name == "" || name == "." || name == ".." {
		return "untitled"
	}

	return name
}

// SanitizeTemplateBase prepares a user-supplied title for use inside a yt-dlp
// output template. "%" is dropped since yt-dlp expands %(field)s sequences.
// Returns "" when nothing usable is left.
func SanitizeTemplateBase(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	title = strings.NewReplacer("%", "", "/", "_", "\\", "_").Replace(title)
	title = strings.TrimSpace(title)
	if title == "" || title == "." || title == ".." {
		return ""
	}
	return SanitizeFilename(title)
}

// SafeDownloadPath resolves and validates a download path ensuring it stays within the target directory.
func SafeDownloadPath(dir, filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, "/\\\x00") {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	full := filepath.Join(absDir, filename)

	resolved, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	if !strings.HasPrefix(resolved, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q escapes %q", resolved, absDir)
	}

	return resolved, nil
}

// Within reports whether path lies directly inside dir.
func Within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(absPath) == absDir
}
