package crossref

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseDepositResponse pulls the status heading and messages out of the
// servlet's HTML page. Unparseable bodies yield no status.
func parseDepositResponse(raw []byte) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", nil
	}
	status := collapse(doc.Find("h2").First().Text())
	if status == "" {
		status = collapse(doc.Find("title").First().Text())
	}
	var messages []string
	doc.Find("body p").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			messages = append(messages, text)
		}
	})
	return strings.ToUpper(status), messages
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
