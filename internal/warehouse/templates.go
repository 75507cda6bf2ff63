package warehouse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Template substitution markers.
const (
	StartMarker = "{start}"
	EndMarker   = "{end}"
)

// ErrTemplateNotFound is returned when a query template does not exist.
var ErrTemplateNotFound = errors.New("query template not found")

// FileTemplates reads query templates from a directory.
type FileTemplates struct {
	Dir string
}

// ReadTemplate returns the contents of the named template file.
// Absolute names are read as is.
func (f FileTemplates) ReadTemplate(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty name", ErrTemplateNotFound)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.Dir, name)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return string(data), nil
}

// Render substitutes the window bounds into a query template.
func Render(template string, start, end int) string {
	return strings.NewReplacer(
		StartMarker, strconv.Itoa(start),
		EndMarker, strconv.Itoa(end),
	).Replace(template)
}
