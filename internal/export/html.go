// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/morganforge/muse/internal/model"
)

var (
	codeFenceRegex  = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[^\n]*\n(.*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
	boldRegex       = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicRegex     = regexp.MustCompile(`\*([^*\n]+)\*`)
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options   *Options
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	styleName := "monokai"
	if opts.Theme == "light" {
		styleName = "github"
	}
	return &HTMLExporter{
		options:   opts,
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4)),
		style:     chromastyles.Get(styleName),
	}
}

// Export converts a conversation to HTML.
func (e *HTMLExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	ch := doc.Character
	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>Conversation with %s</title>\n", html.EscapeString(ch.Name))
	sb.WriteString("    <meta name=\"generator\" content=\"muse\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", doc.ExportedAt.Format(time.RFC3339))
	sb.WriteString("    <style>\n")
	sb.WriteString(pageCSS)
	if err := e.formatter.WriteCSS(&sb, e.style); err != nil {
		return nil, fmt.Errorf("highlight css: %w", err)
	}
	sb.WriteString("    </style>\n</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n<div class=\"container\">\n", theme)

	sb.WriteString("<header class=\"header\">\n")
	fmt.Fprintf(&sb, "    <h1>%s</h1>\n", html.EscapeString(ch.Name))
	if ch.Title != "" {
		fmt.Fprintf(&sb, "    <p class=\"subtitle\">%s</p>\n", html.EscapeString(ch.Title))
	}
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "    <p class=\"metadata\">%d messages, exported %s</p>\n",
			len(doc.Messages), formatTimestamp(doc.ExportedAt))
	}
	sb.WriteString("</header>\n<main class=\"conversation\">\n")

	for _, msg := range doc.Messages {
		class := "assistant"
		if msg.Role == model.RoleUser {
			class = "user"
		}
		fmt.Fprintf(&sb, "<section class=\"message %s\">\n", class)
		fmt.Fprintf(&sb, "    <div class=\"speaker\">%s</div>\n", html.EscapeString(doc.speaker(msg.Role)))
		sb.WriteString("    <div class=\"content\">\n")
		sb.WriteString(e.formatContent(msg.Content))
		sb.WriteString("\n    </div>\n</section>\n")
	}

	sb.WriteString("</main>\n")
	fmt.Fprintf(&sb, "<footer class=\"footer\">Exported from <strong>muse</strong> on %s</footer>\n",
		doc.ExportedAt.Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

// formatContent converts message Markdown to HTML. Fenced code is
// highlighted; the rest gets paragraphs, inline code and emphasis.
func (e *HTMLExporter) formatContent(content string) string {
	var sb strings.Builder
	last := 0
	for _, loc := range codeFenceRegex.FindAllStringSubmatchIndex(content, -1) {
		sb.WriteString(formatProse(content[last:loc[0]]))
		lang := content[loc[2]:loc[3]]
		code := content[loc[4]:loc[5]]
		sb.WriteString(e.highlight(lang, code))
		last = loc[1]
	}
	sb.WriteString(formatProse(content[last:]))
	return sb.String()
}

// highlight renders code with chroma, falling back to escaped text.
func (e *HTMLExporter) highlight(lang, code string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	var sb strings.Builder
	sb.WriteString("<div class=\"code-block\">")
	if lang != "" {
		fmt.Fprintf(&sb, "<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err == nil {
		var out strings.Builder
		if err = e.formatter.Format(&out, e.style, iterator); err == nil {
			sb.WriteString(out.String())
		}
	}
	if err != nil {
		fmt.Fprintf(&sb, "<pre><code>%s</code></pre>", html.EscapeString(code))
	}
	sb.WriteString("</div>\n")
	return sb.String()
}

// formatProse escapes text and converts blank-line separated blocks to
// paragraphs.
func formatProse(text string) string {
	var sb strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		block = html.EscapeString(block)
		block = inlineCodeRegex.ReplaceAllString(block, "<code class=\"inline-code\">$1</code>")
		block = boldRegex.ReplaceAllString(block, "<strong>$1</strong>")
		block = italicRegex.ReplaceAllString(block, "<em>$1</em>")
		block = strings.ReplaceAll(block, "\n", "<br>\n")
		sb.WriteString("<p>")
		sb.WriteString(block)
		sb.WriteString("</p>\n")
	}
	return sb.String()
}

const pageCSS = `        * { margin: 0; padding: 0; box-sizing: border-box; }
        .dark-theme {
            --bg: #1c1917; --bg-alt: #292524; --text: #e7e5e4; --muted: #a8a29e;
            --border: #44403c; --accent: #facc15; --user: #93c5fd;
        }
        .light-theme {
            --bg: #fffbeb; --bg-alt: #f5f0e1; --text: #292524; --muted: #57534e;
            --border: #d6cfc0; --accent: #a16207; --user: #1d4ed8;
        }
        body { background: var(--bg); color: var(--text); line-height: 1.6;
            font-family: Georgia, "Times New Roman", serif; font-size: 17px; }
        .container { max-width: 820px; margin: 0 auto; padding: 2rem 1rem; }
        .header { border-bottom: 1px solid var(--border); padding-bottom: 1rem; margin-bottom: 2rem; }
        .header h1 { color: var(--accent); }
        .subtitle { font-style: italic; color: var(--muted); }
        .metadata { font-size: 0.85rem; color: var(--muted); }
        .message { background: var(--bg-alt); border-left: 3px solid var(--accent);
            border-radius: 6px; padding: 1rem 1.25rem; margin-bottom: 1.25rem; }
        .message.user { border-left-color: var(--user); }
        .speaker { font-weight: bold; margin-bottom: 0.5rem; color: var(--accent); }
        .message.user .speaker { color: var(--user); }
        .content p { margin-bottom: 0.75rem; }
        .inline-code { font-family: monospace; background: var(--bg); padding: 0 0.25rem; border-radius: 3px; }
        .code-block { margin: 0.75rem 0; border: 1px solid var(--border); border-radius: 6px; overflow-x: auto; }
        .code-block pre { padding: 0.75rem; font-size: 0.9rem; }
        .code-lang { font-size: 0.75rem; color: var(--muted); padding: 0.25rem 0.75rem;
            border-bottom: 1px solid var(--border); font-family: monospace; }
        .footer { margin-top: 2rem; font-size: 0.8rem; color: var(--muted); text-align: center; }
`
