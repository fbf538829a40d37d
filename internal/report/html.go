package report

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	md = goldmark.New(goldmark.WithExtensions(extension.GFM))

	rePriorArtHeading = regexp.MustCompile(`(?i)<h2([^>]*)>\s*Prior Art Dossier\s*</h2>`)
	reVerdictHeading  = regexp.MustCompile(`(?i)<h3([^>]*)>\s*(Executive Verdict[^<]*)\s*</h3>`)
)

// RenderHTML converts Markdown to an HTML fragment. Raw HTML in the input is
// not passed through.
func RenderHTML(markdown string) (string, error) {
	var out strings.Builder
	if err := md.Convert([]byte(markdown), &out); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return applyPrintLayoutHooks(out.String()), nil
}

func applyPrintLayoutHooks(contentHTML string) string {
	out := rePriorArtHeading.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Prior Art Dossier</h2>`)
	return reVerdictHeading.ReplaceAllString(out, `<h3$1 data-verdict="true">$2</h3>`)
}

const documentCSS = `
html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}
body{font-family:-apple-system,"Segoe UI",Helvetica,Arial,sans-serif;background:#fff;color:#111;padding:0.6rem;line-height:1.45;}
.packet{max-width:1000px;margin:0 auto;border-left:3px solid #0e7490;padding:0 0.9rem;}
h1{font-size:1.5rem;border-bottom:1px solid #ccc;padding-bottom:0.3rem;}
h2{font-size:1.15rem;margin-top:1.4rem;color:#0e7490;}
h3[data-verdict="true"]{background:#ecfeff;border:1px solid #67e8f9;padding:0.3rem 0.5rem;}
table{width:100%;border-collapse:collapse;font-size:0.85rem;}
th,td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;}
thead th{background:#f1f5f9;}
blockquote{border-left:3px solid #f59e0b;margin:0;padding:0.2rem 0.8rem;background:#fffbeb;}
h2[data-page-break-before="true"]{break-before:page;page-break-before:always;}
@media print{@page{size:auto;margin:12mm;} body{padding:0;} .packet{max-width:none;}}
`

// Document wraps the rendered Markdown in a standalone HTML page.
func Document(title, markdown string) (string, error) {
	content, err := RenderHTML(markdown)
	if err != nil {
		return "", err
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + documentCSS + "</style></head><body><main class='packet'>" +
		content +
		"</main></body></html>", nil
}
