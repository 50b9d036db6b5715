package platform

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/h2non/filetype"
	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
)

var (
	articlePolicy  = bluemonday.UGCPolicy()
	plainPolicy    = bluemonday.StrictPolicy()
	telegramPolicy = newTelegramPolicy()
)

// Telegram's HTML parse mode only understands a handful of inline tags.
func newTelegramPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "s", "code", "pre")
	p.AllowAttrs("href").OnElements("a")
	p.RequireParseableURLs(true)
	return p
}

// toHTML wraps plain generated text in paragraphs and sanitizes markup.
func toHTML(text string) string {
	if !strings.ContainsAny(text, "<>") {
		var b strings.Builder
		for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			b.WriteString("<p>")
			b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
			b.WriteString("</p>\n")
		}
		return b.String()
	}
	return articlePolicy.Sanitize(text)
}

func plainText(text string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(text)))
}

// splitTitle takes the first heading as the article title, falling back to
// the first line of text.
func splitTitle(text string) (title, body string) {
	body = toHTML(text)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		heading := doc.Find("h1, h2, h3").First()
		if heading.Length() > 0 {
			title = strings.TrimSpace(heading.Text())
			heading.Remove()
			if rest, err := doc.Find("body").Html(); err == nil {
				body = strings.TrimSpace(rest)
			}
		}
	}

	if title == "" {
		first, _, _ := strings.Cut(plainText(text), "\n")
		title = strings.TrimSpace(first)
	}
	return truncate(title, 120), body
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

type openTag struct {
	name string
	raw  string
}

// splitHTML cuts sanitized HTML after limit visible characters. Tags and
// entities are never split: an entity counts as one character and markup
// counts as none. The cut moves back to the last whitespace when that keeps
// at least half the limit. Tags open at the cut are closed in head and
// reopened in tail.
func splitHTML(s string, limit int) (head, tail string) {
	z := nethtml.NewTokenizer(strings.NewReader(s))

	var (
		stack     []openTag
		offset    int
		visible   int
		spaceAt   = -1
		spaceSeen int
		spaceTags []openTag
	)
	for {
		tt := z.Next()
		raw := string(z.Raw())

		switch tt {
		case nethtml.ErrorToken:
			return s, ""
		case nethtml.StartTagToken:
			name, _ := z.TagName()
			stack = append(stack, openTag{name: string(name), raw: raw})
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == string(name) {
					stack = append(stack[:i], stack[i+1:]...)
					break
				}
			}
		case nethtml.TextToken:
			for i := 0; i < len(raw); {
				size := textUnit(raw[i:])
				if visible == limit {
					cut, tags := offset+i, stack
					if spaceAt >= 0 && spaceSeen*2 >= limit {
						cut, tags = spaceAt, spaceTags
					}
					return closeTags(s[:cut], tags), reopenTags(s[cut:], tags)
				}
				visible++
				if c := raw[i]; c == ' ' || c == '\n' || c == '\t' {
					spaceAt, spaceSeen = offset+i+size, visible
					spaceTags = append([]openTag(nil), stack...)
				}
				i += size
			}
		}
		offset += len(raw)
	}
}

// textUnit returns the byte length of the visible character at the start of
// s: a whole entity or one rune.
func textUnit(s string) int {
	if s[0] == '&' {
		if end := strings.IndexByte(s, ';'); end > 1 && end <= 32 && !strings.ContainsAny(s[1:end], " &<") {
			return end + 1
		}
	}
	_, size := utf8.DecodeRuneInString(s)
	return size
}

func closeTags(head string, tags []openTag) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(head, " \n\t"))
	for i := len(tags) - 1; i >= 0; i-- {
		b.WriteString("</" + tags[i].name + ">")
	}
	return b.String()
}

func reopenTags(tail string, tags []openTag) string {
	var b strings.Builder
	for _, t := range tags {
		b.WriteString(t.raw)
	}
	b.WriteString(strings.TrimLeft(tail, " \n\t"))
	return b.String()
}

// sniffImage reports the MIME type and extension of image bytes.
func sniffImage(b []byte) (mime, ext string, ok bool) {
	kind, err := filetype.Match(b)
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(b) {
		return "application/octet-stream", "bin", false
	}
	return kind.MIME.Value, kind.Extension, true
}
