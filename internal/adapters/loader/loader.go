// Package loader provides document loading adapters.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

// DefaultExtensions are the corpus file types read by default.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// TextLoader loads a single plain text or markdown document.
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads the document at path and labels it with source.
// Invalid UTF-8 sequences are replaced rather than rejected.
func (l *TextLoader) Load(ctx context.Context, path, source string) (entities.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return entities.Document{}, err
	}
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return entities.Document{Source: source, Content: text}, nil
}

// DirectoryLoader implements ports.DocumentLoader over a directory tree.
type DirectoryLoader struct {
	text       *TextLoader
	extensions []string
}

// NewDirectoryLoader reads files with the given extensions; nil means
// DefaultExtensions. Extensions are matched case-insensitively.
func NewDirectoryLoader(extensions []string) *DirectoryLoader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[i] = e
	}
	return &DirectoryLoader{text: NewTextLoader(), extensions: exts}
}

// SupportedExtensions returns file extensions this loader handles.
func (l *DirectoryLoader) SupportedExtensions() []string {
	return append([]string(nil), l.extensions...)
}

// LoadDir reads every supported file under dir. Sources are slash-separated
// paths relative to dir and the result is sorted by source. Hidden files and
// directories are skipped.
func (l *DirectoryLoader) LoadDir(ctx context.Context, dir string) ([]entities.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus directory: %s is not a directory", dir)
	}

	var docs []entities.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.supported(path) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		doc, err := l.text.Load(ctx, path, filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("loading %s: %w", rel, err)
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}

func (l *DirectoryLoader) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range l.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
