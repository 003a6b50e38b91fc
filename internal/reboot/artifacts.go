package reboot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rebootctl/api/schemas"
)

// Artifact file names. They are fixed so each failing run replaces the last.
const (
	ScreenshotFile = "error_screenshot.png"
	PageSourceFile = "error_page_source.html"
)

// FileWriter persists diagnostic bundles into one directory.
type FileWriter struct {
	dir    string
	logger *zap.Logger
}

var _ schemas.ArtifactWriter = (*FileWriter)(nil)

// NewFileWriter creates a FileWriter for dir. A leading ~ is expanded.
func NewFileWriter(dir string, logger *zap.Logger) (*FileWriter, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand artifacts dir %q: %w", dir, err)
	}
	return &FileWriter{dir: expanded, logger: logger.Named("artifacts")}, nil
}

// Dir returns the directory artifacts are written to.
func (w *FileWriter) Dir() string { return w.dir }

// Write replaces the artifacts in the directory with bundle. Parts that were
// not captured are not written, and stale files from an earlier run are
// removed first so the directory never mixes two runs.
func (w *FileWriter) Write(bundle *schemas.DiagnosticBundle) (*schemas.ArtifactPaths, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts dir: %w", err)
	}

	screenshotPath := filepath.Join(w.dir, ScreenshotFile)
	pagePath := filepath.Join(w.dir, PageSourceFile)
	for _, p := range []string{screenshotPath, pagePath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale artifact: %w", err)
		}
	}

	paths := &schemas.ArtifactPaths{}
	if bundle.IsEmpty() {
		return paths, nil
	}

	var errs []error
	if len(bundle.Screenshot) > 0 {
		if err := os.WriteFile(screenshotPath, bundle.Screenshot, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("screenshot: %w", err))
		} else {
			paths.ScreenshotPath = screenshotPath
		}
	}
	if bundle.PageSource != "" {
		if err := os.WriteFile(pagePath, []byte(bundle.PageSource), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("page source: %w", err))
		} else {
			paths.PageSourcePath = pagePath
		}
		w.logSummary(bundle.PageSource)
	}
	return paths, errors.Join(errs...)
}

func (w *FileWriter) logSummary(html string) {
	summary, err := Summarize(html)
	if err != nil {
		w.logger.Debug("Could not parse page source.", zap.Error(err))
		return
	}
	w.logger.Info("Page summary at failure.",
		zap.String("title", summary.Title),
		zap.Strings("inputs", summary.Inputs),
		zap.Strings("buttons", summary.Buttons),
		zap.Strings("messages", summary.Messages))
}

// PageSummary is a short description of a page, for logs.
type PageSummary struct {
	Title    string
	Inputs   []string
	Buttons  []string
	Messages []string
}

const maxSummaryItems = 10

// Summarize extracts the title, form inputs, buttons and error-like messages
// from page markup.
func Summarize(html string) (*PageSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	s := &PageSummary{Title: strings.TrimSpace(doc.Find("title").First().Text())}

	doc.Find("input").Each(func(_ int, sel *goquery.Selection) {
		if len(s.Inputs) >= maxSummaryItems {
			return
		}
		name := sel.AttrOr("id", sel.AttrOr("name", ""))
		if name == "" {
			return
		}
		s.Inputs = append(s.Inputs, fmt.Sprintf("%s[%s]", name, sel.AttrOr("type", "text")))
	})

	doc.Find("button, a.btn, input[type=submit]").Each(func(_ int, sel *goquery.Selection) {
		if len(s.Buttons) >= maxSummaryItems {
			return
		}
		if label := compact(sel.Text()); label != "" {
			s.Buttons = append(s.Buttons, label)
		} else if v, ok := sel.Attr("value"); ok && v != "" {
			s.Buttons = append(s.Buttons, v)
		}
	})

	doc.Find("[class*=error], [class*=alert], [role=alert]").Each(func(_ int, sel *goquery.Selection) {
		if len(s.Messages) >= maxSummaryItems {
			return
		}
		if msg := compact(sel.Text()); msg != "" {
			s.Messages = append(s.Messages, msg)
		}
	})
	return s, nil
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
