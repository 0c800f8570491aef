// Package renderer turns a finished viability report into a print-ready PDF
// using headless Chromium.
package renderer

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/stattenfield/ideascope/internal/viability"
)

const defaultStyleCSS = `body{font-family:Georgia,serif;color:#1c1917;line-height:1.5;}
h1{font-size:1.5rem;border-bottom:2px solid #0f766e;padding-bottom:0.3rem;}
h2{font-size:1.15rem;color:#0f766e;margin-top:1.4rem;}
blockquote{border-left:3px solid #b45309;background:#fffbeb;padding:0.4rem 0.8rem;margin:0.8rem 0;}
code{font-family:monospace;background:#f5f5f4;padding:0.1rem 0.25rem;}`

type ChromiumPDFRenderer struct {
	stylePath  string
	chromePath string
	styleOnce  sync.Once
	styleCSS   string
	styleErr   error
}

// NewChromiumPDFRenderer builds a renderer. stylePath may be empty, in which
// case a built-in stylesheet is used.
func NewChromiumPDFRenderer(stylePath string) *ChromiumPDFRenderer {
	return &ChromiumPDFRenderer{
		stylePath:  stylePath,
		chromePath: detectChromePath(),
	}
}

func (r *ChromiumPDFRenderer) Render(ctx context.Context, env viability.ResponseEnvelope) ([]byte, error) {
	htmlDoc, err := r.buildHTML(env)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;padding-right:8px;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.45).
				WithMarginRight(0.45).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

func (r *ChromiumPDFRenderer) buildHTML(env viability.ResponseEnvelope) (string, error) {
	markdown := env.ReportMarkdown
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("envelope carries no report markdown")
	}

	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	contentHTML := applyPrintLayoutHooks(content.String())

	styleCSS, err := r.loadStyleCSS()
	if err != nil {
		return "", err
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>Idea Viability Report</title>" +
		"<style>" + styleCSS + "\n" +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
		"body{background:#fff !important;padding:0.6rem;} .pdf-wrap{max-width:1000px;margin:0 auto;} " +
		".report-header{margin-bottom:1rem;} " +
		".report-badge{display:inline-block;background:#ccfbf1 !important;color:#134e4a !important;border:1px solid #5eead4 !important;border-radius:4px;padding:0.15rem 0.5rem;margin-right:0.4rem;font-size:0.8rem;} " +
		".report-badge.degraded{background:#fef3c7 !important;color:#78350f !important;border-color:#fcd34d !important;} " +
		".report-meta{color:#44403c !important;font-size:0.85rem;} .report-meta strong{color:#1c1917 !important;} " +
		".report-html table{width:100% !important;border-collapse:collapse !important;border:1px solid #a8a29e !important;font-size:0.8rem !important;} " +
		".report-html th,.report-html td{border:1px solid #a8a29e !important;padding:0.35rem 0.45rem !important;text-align:left !important;vertical-align:top !important;} " +
		".report-html thead th{background:#f1f5f9 !important;font-weight:700 !important;} " +
		`h2[data-page-break-before="true"]{break-before:page;page-break-before:always;} ` +
		"@media print{ @page{size:auto;margin:12mm;} body{background:#fff !important;padding:0;} .pdf-wrap{max-width:none;} }" +
		"</style></head><body>" +
		"<div class='pdf-wrap'><div class='report-header'>" +
		"<div class='report-meta'>" + buildMetaHTML(env) + "</div>" +
		"<div class='report-badges'>" + buildBadgeHTML(env) + "</div>" +
		"</div><div class='report-html'>" + contentHTML + "</div></div>" +
		"</body></html>", nil
}

func applyPrintLayoutHooks(contentHTML string) string {
	reAlignment := regexp.MustCompile(`(?i)<h2([^>]*)>\s*Objective Alignment\s*</h2>`)
	out := reAlignment.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Objective Alignment</h2>`)

	reInsights := regexp.MustCompile(`(?i)<h2([^>]*)>\s*Scored Insights\s*</h2>`)
	out = reInsights.ReplaceAllString(out, `<h2$1 data-insight-heading="true">Scored Insights</h2>`)

	return out
}

func (r *ChromiumPDFRenderer) loadStyleCSS() (string, error) {
	r.styleOnce.Do(func() {
		if r.stylePath == "" {
			r.styleCSS = defaultStyleCSS
			return
		}
		b, err := os.ReadFile(filepath.Clean(r.stylePath))
		if err != nil {
			r.styleErr = fmt.Errorf("read stylesheet: %w", err)
			return
		}
		r.styleCSS = string(b)
	})
	return r.styleCSS, r.styleErr
}

func buildMetaHTML(env viability.ResponseEnvelope) string {
	var out strings.Builder
	if idea := strings.TrimSpace(env.Idea); idea != "" {
		out.WriteString("<div><strong>Idea:</strong> " + html.EscapeString(idea) + "</div>")
	}
	if env.Analysis.Metadata.Model != "" {
		out.WriteString("<div><strong>Model:</strong> " + html.EscapeString(env.Analysis.Metadata.Model) + "</div>")
	}
	if !env.Analysis.Metadata.GeneratedAt.IsZero() {
		out.WriteString("<div><strong>Date:</strong> " +
			html.EscapeString(env.Analysis.Metadata.GeneratedAt.In(time.Local).Format("January 2, 2006 at 3:04 PM MST")) + "</div>")
	}
	return out.String()
}

func buildBadgeHTML(env viability.ResponseEnvelope) string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("<span class='report-badge'>Viability %.2f</span>", env.Viability.Score))
	out.WriteString(fmt.Sprintf("<span class='report-badge'>Confidence %.2f</span>", env.Viability.Confidence))
	if env.State == viability.StateDegradedCompleted {
		out.WriteString("<span class='report-badge degraded'>DEGRADED</span>")
	}
	return out.String()
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
