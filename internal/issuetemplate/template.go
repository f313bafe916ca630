package issuetemplate

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed templates/*.md
var files embed.FS

const (
	// Placeholder is replaced with the pull request reference.
	Placeholder   = "XXX"
	DefaultLocale = "en"

	filePrefix = "copilot-usage-"
	fileSuffix = ".md"
)

// Source maps a locale code to a markdown issue template.
type Source interface {
	Template(locale string) (string, bool)
	Locales() []string
}

type embeddedSource struct {
	templates map[string]string
}

// NewEmbeddedSource loads the templates bundled with the binary.
func NewEmbeddedSource() (Source, error) {
	return NewFSSource(files, "templates")
}

// NewFSSource loads every copilot-usage-<locale>.md file in dir.
func NewFSSource(fsys fs.FS, dir string) (Source, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading template dir: %w", err)
	}

	templates := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		locale := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", name, err)
		}
		templates[locale] = string(data)
	}

	if _, ok := templates[DefaultLocale]; !ok {
		return nil, fmt.Errorf("default template %q missing", DefaultLocale)
	}

	return &embeddedSource{templates: templates}, nil
}

func (s *embeddedSource) Template(locale string) (string, bool) {
	t, ok := s.templates[locale]
	return t, ok
}

func (s *embeddedSource) Locales() []string {
	locales := make([]string, 0, len(s.templates))
	for l := range s.templates {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// Render returns the issue body for a pull request and the locale actually used.
// Unknown locales fall back to DefaultLocale.
func Render(src Source, locale string, prNumber int) (string, string) {
	body, ok := src.Template(locale)
	if !ok {
		locale = DefaultLocale
		body, _ = src.Template(DefaultLocale)
	}
	body = strings.ReplaceAll(body, Placeholder, "#"+strconv.Itoa(prNumber))
	return Dedent(body), locale
}

// Dedent removes the whitespace prefix shared by every non-blank line.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return s
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
