package reach

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Render returns the output file content for fr: each excerpt's exact
// text, separated by one blank line, ending in a newline.
func Render(fr FileResult) []byte {
	var buf bytes.Buffer
	for i, x := range fr.Excerpts {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(x.Text)
	}
	if buf.Len() > 0 {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// WriteOutput writes one file per matched source file under dir, at the
// source's project-relative path. Existing files are overwritten; files
// without matches are not written.
func WriteOutput(res *Result, dir string) error {
	for _, fr := range res.Files {
		if len(fr.Excerpts) == 0 {
			continue
		}
		dst := filepath.Join(dir, filepath.FromSlash(fr.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("write output %s: %w", fr.Path, ioError(err))
		}
		if err := os.WriteFile(dst, Render(fr), 0o644); err != nil {
			return fmt.Errorf("write output %s: %w", fr.Path, ioError(err))
		}
	}
	return nil
}
