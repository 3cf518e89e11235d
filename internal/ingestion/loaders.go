package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// docKind is the extraction strategy for a document.
type docKind int

const (
	kindUnknown docKind = iota
	kindText
	kindPDF
	kindHTML
)

// textExtensions are read verbatim.
var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

func kindFromName(name string) docKind {
	ext := strings.ToLower(path.Ext(name))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	switch {
	case ext == ".pdf":
		return kindPDF
	case ext == ".html" || ext == ".htm":
		return kindHTML
	case textExtensions[ext]:
		return kindText
	default:
		return kindUnknown
	}
}

func kindFromContentType(ct string) docKind {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return kindUnknown
	}
	switch {
	case mt == "application/pdf":
		return kindPDF
	case mt == "text/html" || mt == "application/xhtml+xml":
		return kindHTML
	case strings.HasPrefix(mt, "text/"):
		return kindText
	default:
		return kindUnknown
	}
}

// extract converts raw document bytes to plain text. pageURL resolves
// relative links in HTML and may be nil for other kinds.
func extract(kind docKind, data []byte, pageURL *url.URL) (string, error) {
	switch kind {
	case kindPDF:
		return extractPDF(data)
	case kindHTML:
		return extractHTML(data, pageURL)
	case kindText:
		return normalizeText(data), nil
	default:
		return "", fmt.Errorf("unsupported document type")
	}
}

// normalizeText decodes data as UTF-8, replacing invalid sequences, and
// strips a leading byte order mark.
func normalizeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

// extractPDF pulls the plain text out of a PDF held in memory.
func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf buffer: %w", err)
	}
	return normalizeText(buf.Bytes()), nil
}

// extractHTML keeps the readable article text of an HTML page, dropping
// navigation and boilerplate. Each block element becomes its own paragraph so
// the chunker still sees paragraph boundaries.
func extractHTML(data []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	root, err := html.Parse(strings.NewReader(article.Content))
	if err != nil {
		return "", fmt.Errorf("parse article html: %w", err)
	}

	paras := htmlParagraphs(root)
	if title := strings.Join(strings.Fields(article.Title), " "); title != "" &&
		(len(paras) == 0 || paras[0] != title) {
		paras = append([]string{title}, paras...)
	}
	return normalizeText([]byte(strings.Join(paras, "\n\n"))), nil
}

// htmlParagraphs returns the text of root split at block elements, with
// whitespace inside each paragraph collapsed to single spaces.
func htmlParagraphs(root *html.Node) []string {
	var raw strings.Builder
	writeBlocks(&raw, root)

	var paras []string
	for _, block := range strings.Split(raw.String(), "\n\n") {
		if block = strings.Join(strings.Fields(block), " "); block != "" {
			paras = append(paras, block)
		}
	}
	return paras
}

// blockTags are the elements that end a paragraph.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figcaption": true, "figure": true, "footer": true, "header": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// writeBlocks appends the text under n to b, separating block elements with
// blank lines. Script and style contents are skipped.
func writeBlocks(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeBlocks(b, c)
	}
	if block {
		b.WriteString("\n\n")
	}
}

// loadPath loads a file or walks a directory.
func (p *Pipeline) loadPath(ctx context.Context, src string) ([]Document, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		kind := kindFromName(src)
		if kind == kindUnknown {
			return nil, fmt.Errorf("unsupported file type %q (supported: .txt, .text, .md, .markdown, .html, .htm, .pdf)", filepath.Ext(src))
		}
		doc, err := p.loadFile(src, filepath.Base(src), kind)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	var docs []Document
	err = filepath.WalkDir(src, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if full != src && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		kind := kindFromName(d.Name())
		if kind == kindUnknown {
			return nil
		}
		rel, err := filepath.Rel(src, full)
		if err != nil {
			return err
		}
		doc, err := p.loadFile(full, filepath.ToSlash(rel), kind)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// loadFile reads one local file and extracts its text.
func (p *Pipeline) loadFile(full, source string, kind docKind) (Document, error) {
	f, err := os.Open(full)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()

	data, err := readLimited(f, p.cfg.MaxBytes)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", full, err)
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return Document{}, err
	}
	text, err := extract(kind, data, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", full, err)
	}
	return Document{Source: source, Text: text}, nil
}
