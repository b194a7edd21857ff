package meca

import (
	"encoding/xml"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// textContent captures the concatenated character data of an element and all
// its descendants, dropping the markup.
type textContent string

func (t *textContent) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(v)
		}
	}
	*t = textContent(b.String())
	return nil
}

// String returns the trimmed NFC-normalized text.
func (t textContent) String() string {
	return cleanText(string(t))
}

func cleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

var markupPolicy = bluemonday.StrictPolicy()

// plainText strips HTML that review forms store escaped inside the response
// text, keeping paragraph breaks.
func plainText(s string) string {
	s = strings.NewReplacer("</p>", "</p>\n", "<br>", "\n", "<br/>", "\n", "<br />", "\n").Replace(s)
	stripped := html.UnescapeString(markupPolicy.Sanitize(s))
	lines := strings.Split(stripped, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return cleanText(strings.Join(kept, "\n\n"))
}
