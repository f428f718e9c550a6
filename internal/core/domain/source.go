package domain

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Archive extension sets. Supported formats are extracted in place;
// known-but-unsupported formats are recognised so they fail with a
// clearer error than an arbitrary unknown file.
var (
	SupportedArchiveExts = map[string]bool{
		".zip":    true,
		".tar.gz": true,
		".tar":    true,
	}
	KnownUnsupportedArchiveExts = map[string]bool{
		".rar": true,
		".7z":  true,
	}
)

// ArchiveExt returns the archive extension of path, honouring the
// compound .tar.gz suffix, or "" when path is not an archive.
func ArchiveExt(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") {
		return ".tar.gz"
	}
	ext := filepath.Ext(lower)
	if SupportedArchiveExts[ext] || KnownUnsupportedArchiveExts[ext] {
		return ext
	}
	return ""
}

// IsArchivePath reports whether path carries an archive extension,
// supported or not.
func IsArchivePath(path string) bool {
	return ArchiveExt(path) != ""
}

// IsRemoteRepoURL reports whether source refers to a GitHub
// repository rather than a local path.
func IsRemoteRepoURL(source string) bool {
	if strings.HasPrefix(source, "git@github.com:") {
		return true
	}
	parsed, err := url.Parse(source)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https", "git":
		return parsed.Host == "github.com"
	}
	return false
}
