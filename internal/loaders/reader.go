package loaders

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
)

const readerName = "extension_based"

// langExts maps source code extensions to the language tag appended
// to the code_ content type.
var langExts = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".java":  "java",
	".cpp":   "cpp",
	".c":     "c",
	".cs":    "csharp",
	".go":    "go",
	".php":   "php",
	".proto": "proto",
	".kt":    "kotlin",
	".rb":    "ruby",
	".rs":    "rust",
	".scala": "scala",
	".swift": "swift",
	".sol":   "solidity",
	".lua":   "lua",
	".pl":    "perl",
	".hs":    "haskell",
	".ex":    "elixir",
	".ps1":   "powershell",
	".tex":   "latex",
	".rst":   "rst",
	".html":  "html",
	".cob":   "cobol",
}

// ExtensionReader reads a file into a document based on its extension
// and detected MIME type. Images are captioned and audio transcribed
// when the matching service is configured; both degrade to empty
// content on failure.
type ExtensionReader struct {
	captioner   driven.Captioner
	transcriber driven.Transcriber
}

var _ driven.ContentReader = (*ExtensionReader)(nil)

// NewExtensionReader returns a reader. Both services may be nil.
func NewExtensionReader(captioner driven.Captioner, transcriber driven.Transcriber) *ExtensionReader {
	return &ExtensionReader{captioner: captioner, transcriber: transcriber}
}

// Read loads path into a single document.
func (r *ExtensionReader) Read(ctx context.Context, path string) ([]*domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mime := detectMIME(path)

	logger.Debug("Reading file %s (ext=%s, mime=%s)", path, ext, mime)

	var content, parsedFormat string
	var err error

	switch {
	case langExts[ext] != "":
		content, err = readText(path)
		parsedFormat = "code_" + langExts[ext]
	case ext == ".json":
		content, err = readJSON(path)
		parsedFormat = "json"
	case ext == ".txt" || ext == "" || ext == ".csv":
		content, err = readText(path)
		parsedFormat = "text"
	case ext == ".md":
		content, err = readText(path)
		parsedFormat = "markdown"
	case strings.HasPrefix(mime, "image/"):
		content = r.captionImage(ctx, path)
		parsedFormat = "image"
	case strings.HasPrefix(mime, "audio/"):
		content = r.transcribeAudio(ctx, path, mime)
		parsedFormat = "text"
	default:
		content = ""
		parsedFormat = "blob"
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	fingerprint, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", path, err)
	}

	doc := &domain.Document{
		UUID:    uuid.NewString(),
		Content: content,
		Lang:    detectLang(content),
		Tags:    []string{},
		Source: domain.SourceInfo{
			FileReader:   readerName,
			ParsedFormat: parsedFormat,
			TmpURI:       path,
		},
		Metadata: domain.FileMeta{
			Filename:     filepath.Base(path),
			SizeBytes:    info.Size(),
			LastModified: info.ModTime().Unix(),
			Fingerprint:  fingerprint,
			MIME:         mime,
		},
	}

	return []*domain.Document{doc}, nil
}

func (r *ExtensionReader) captionImage(ctx context.Context, path string) string {
	if r.captioner == nil {
		logger.Warn("Captioner not configured; indexing %s with empty caption", path)
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read image %s: %v", path, err)
		return ""
	}
	captions, err := r.captioner.GenerateCaptions(ctx, [][]byte{data})
	if err != nil || len(captions) == 0 {
		logger.Warn("Failed to caption image %s: %v", path, err)
		return ""
	}
	return captions[0]
}

func (r *ExtensionReader) transcribeAudio(ctx context.Context, path, mime string) string {
	if r.transcriber == nil {
		logger.Warn("Transcriber not configured; indexing %s with empty transcript", path)
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read audio %s: %v", path, err)
		return ""
	}
	text, err := r.transcriber.Transcribe(ctx, data, mime)
	if err != nil {
		logger.Warn("Failed to transcribe audio %s: %v", path, err)
		return ""
	}
	return text
}

func detectMIME(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	// Strip parameters such as charset.
	base, _, _ := strings.Cut(mt.String(), ";")
	return strings.TrimSpace(base)
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	// Invalid UTF-8 sequences are replaced rather than rejected.
	return strings.ToValidUTF8(string(data), "�"), nil
}

// readJSON re-encodes the file compactly so chunk boundaries are not
// dominated by indentation.
func readJSON(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return "", fmt.Errorf("compact json: %w", err)
	}
	return buf.String(), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
