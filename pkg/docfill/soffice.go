package docfill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	sofficeName = "soffice"
	// sofficeWaitDelay bounds how long output pipes are drained after the
	// process is killed.
	sofficeWaitDelay = 2 * time.Second
)

// SofficeStrategy converts documents with a headless LibreOffice process.
type SofficeStrategy struct {
	// Candidates are absolute paths or command names, probed in order.
	Candidates []string
	// Timeout bounds one conversion. Zero means no limit beyond ctx.
	Timeout time.Duration
	// TempDir is where scratch directories are created. Empty means
	// os.TempDir.
	TempDir string
}

// Name implements Strategy.
func (s *SofficeStrategy) Name() string {
	return sofficeName
}

// Locate returns the first candidate that is an executable file.
func (s *SofficeStrategy) Locate() (string, error) {
	for _, c := range s.Candidates {
		if c == "" {
			continue
		}
		if !filepath.IsAbs(c) {
			if p, err := exec.LookPath(c); err == nil {
				return p, nil
			}
			continue
		}
		if executable(c) {
			return c, nil
		}
	}
	return "", &RenderError{
		Kind:     KindRendererUnavailable,
		Strategy: sofficeName,
		Cause:    fmt.Errorf("no office suite binary in %d candidate locations", len(s.Candidates)),
	}
}

func executable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0
}

// Render implements Strategy. Each conversion runs in its own scratch
// directory with a throwaway user profile, so concurrent conversions do not
// share LibreOffice state.
func (s *SofficeStrategy) Render(ctx context.Context, docx []byte) ([]byte, error) {
	bin, err := s.Locate()
	if err != nil {
		return nil, err
	}

	work, err := os.MkdirTemp(s.TempDir, "docfill-render-*")
	if err != nil {
		return nil, s.failed(fmt.Errorf("failed to create scratch directory: %w", err))
	}
	defer os.RemoveAll(work)

	src := filepath.Join(work, "input.docx")
	outDir := filepath.Join(work, "out")
	if err := os.WriteFile(src, docx, 0o600); err != nil {
		return nil, s.failed(fmt.Errorf("failed to write input: %w", err))
	}
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, s.failed(fmt.Errorf("failed to create output directory: %w", err))
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin,
		"--headless",
		"--norestore",
		"-env:UserInstallation="+fileURL(filepath.Join(work, "profile")),
		"--convert-to", "pdf",
		"--outdir", outDir,
		src,
	)
	cmd.WaitDelay = sofficeWaitDelay
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	runErr := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &RenderError{
			Kind:     KindRenderTimeout,
			Strategy: sofficeName,
			Cause:    fmt.Errorf("conversion exceeded %s", s.Timeout),
		}
	}
	if ctx.Err() != nil {
		return nil, s.failed(ctx.Err())
	}
	if runErr != nil {
		return nil, s.failed(fmt.Errorf("%w: %s", runErr, strings.TrimSpace(output.String())))
	}

	pdf, err := os.ReadFile(filepath.Join(outDir, "input.pdf"))
	if err != nil {
		return nil, s.failed(fmt.Errorf("no output produced: %w", err))
	}
	return pdf, nil
}

func (s *SofficeStrategy) failed(cause error) error {
	return &RenderError{Kind: KindRenderFailed, Strategy: sofficeName, Cause: cause}
}

func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
