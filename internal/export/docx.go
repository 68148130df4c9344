package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// exportDOCX renders the set list HTML to DOCX by piping it through
// pandoc. The binary is optional at deploy time; when it is absent the
// caller reports the format as unavailable rather than failing outright.
func exportDOCX(ctx context.Context, html, title string) (*Result, error) {
	pandoc, err := exec.LookPath("pandoc")
	if err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, pandoc, "-f", "html", "-t", "docx", "--standalone", "-o", "-")
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("pandoc: %s", msg)
		}
		return nil, fmt.Errorf("run pandoc: %w", err)
	}

	return &Result{
		Data:     out.Bytes(),
		Filename: sanitizeFilename(title) + ".docx",
		MimeType: docxMimeType,
	}, nil
}
