package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/lu4p/cat"
)

// extractWithCat handles formats lu4p/cat reads (.odt, .rtf). cat works on files, so
// the content is staged in a temp file with the right extension.
func extractWithCat(content []byte, ext string) (string, error) {
	f, err := os.CreateTemp("", "kioku-import-*"+strings.ToLower(ext))
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", ext, err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("stage %s: %w", ext, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("stage %s: %w", ext, err)
	}
	text, err := cat.File(f.Name())
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", ext, err)
	}
	return strings.TrimSpace(text), nil
}
