package deposition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGenerationFailed marks every failure to produce a deposition document.
// It is terminal for the archive until templates or data are fixed.
var ErrGenerationFailed = errors.New("deposition generation failed")

// Token names available to templates.
const (
	TokenArticleID      = "article_id"
	TokenArticleDOI     = "article_doi"
	TokenArticleTitle   = "article_title"
	TokenRevision       = "revision"
	TokenRunningNumber  = "running_number"
	TokenReviewNumber   = "review_number"
	TokenRandom         = "random"
	TokenYear           = "year"
	TokenBatchTimestamp = "batch_timestamp"
)

var knownTokens = map[string]struct{}{
	TokenArticleID:      {},
	TokenArticleDOI:     {},
	TokenArticleTitle:   {},
	TokenRevision:       {},
	TokenRunningNumber:  {},
	TokenReviewNumber:   {},
	TokenRandom:         {},
	TokenYear:           {},
	TokenBatchTimestamp: {},
}

// TemplateSet is the raw template text as configured.
type TemplateSet struct {
	DOI                    string
	ReviewTitle            string
	ReviewResourceURL      string
	AuthorReplyTitle       string
	AuthorReplyResourceURL string
}

// Templates holds parsed templates. Construct with ParseTemplates.
type Templates struct {
	doi                    *template
	reviewTitle            *template
	reviewResourceURL      *template
	authorReplyTitle       *template
	authorReplyResourceURL *template
}

// ParseTemplates validates every template up front. References use $name or
// ${name}; $$ is a literal dollar sign. Unknown names fail with
// ErrGenerationFailed.
func ParseTemplates(set TemplateSet) (*Templates, error) {
	var (
		t   Templates
		err error
	)
	fields := []struct {
		name string
		raw  string
		dst  **template
	}{
		{"doi", set.DOI, &t.doi},
		{"review_title", set.ReviewTitle, &t.reviewTitle},
		{"review_resource_url", set.ReviewResourceURL, &t.reviewResourceURL},
		{"author_reply_title", set.AuthorReplyTitle, &t.authorReplyTitle},
		{"author_reply_resource_url", set.AuthorReplyResourceURL, &t.authorReplyResourceURL},
	}
	for _, f := range fields {
		if *f.dst, err = parseTemplate(f.name, f.raw); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

type segment struct {
	literal string
	token   string
}

type template struct {
	name     string
	segments []segment
}

func parseTemplate(name, raw string) (*template, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: template %s is empty", ErrGenerationFailed, name)
	}
	t := &template{name: name}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '$' {
			lit.WriteByte(c)
			continue
		}
		if i+1 < len(raw) && raw[i+1] == '$' {
			lit.WriteByte('$')
			i++
			continue
		}
		var token string
		if i+1 < len(raw) && raw[i+1] == '{' {
			end := strings.IndexByte(raw[i+2:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: template %s: unterminated ${ at offset %d", ErrGenerationFailed, name, i)
			}
			token = raw[i+2 : i+2+end]
			i += end + 2
		} else {
			j := i + 1
			for j < len(raw) && isIdentByte(raw[j], j == i+1) {
				j++
			}
			token = raw[i+1 : j]
			i = j - 1
		}
		if token == "" {
			return nil, fmt.Errorf("%w: template %s: dangling $ at offset %d", ErrGenerationFailed, name, i)
		}
		if _, ok := knownTokens[token]; !ok {
			return nil, fmt.Errorf("%w: template %s references undefined token %q", ErrGenerationFailed, name, token)
		}
		flush()
		t.segments = append(t.segments, segment{token: token})
	}
	flush()
	return t, nil
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}

// render substitutes values. A referenced token with no or an empty value is
// an error.
func (t *template) render(values map[string]string) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.token == "" {
			b.WriteString(seg.literal)
			continue
		}
		v, ok := values[seg.token]
		if !ok || v == "" {
			return "", fmt.Errorf("%w: template %s: missing value for token %q", ErrGenerationFailed, t.name, seg.token)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}
