package deposition

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"mecadoi/internal/article"
	"mecadoi/internal/meca"
)

// Depositor is written into the batch head and every peer_review record.
type Depositor struct {
	Name          string
	Email         string
	Registrant    string
	Institution   string
	BatchIDPrefix string
}

// RegisteredDOI is one DOI the document asks Crossref to register.
type RegisteredDOI struct {
	DOI           string
	Resource      string
	Kind          article.Kind
	Revision      int
	RunningNumber int
}

// Document is a rendered deposition batch.
type Document struct {
	BatchID string
	XML     []byte
	DOIs    []RegisteredDOI
}

// DOIStrings returns the DOI values in document order.
func (d *Document) DOIStrings() []string {
	out := make([]string, len(d.DOIs))
	for i, r := range d.DOIs {
		out[i] = r.DOI
	}
	return out
}

// Generator renders articles into Crossref peer review deposition files.
type Generator struct {
	templates *Templates
	depositor Depositor
}

// NewGenerator returns a generator for parsed templates.
func NewGenerator(templates *Templates, d Depositor) *Generator {
	if strings.TrimSpace(d.BatchIDPrefix) == "" {
		d.BatchIDPrefix = "rc"
	}
	return &Generator{templates: templates, depositor: d}
}

// Generate renders one doi_batch with a peer_review per review event. The
// output depends only on the article, the depositor and p.
func (g *Generator) Generate(a *article.Article, p Params) (*Document, error) {
	if g == nil || g.templates == nil {
		return nil, fmt.Errorf("%w: generator has no templates", ErrGenerationFailed)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: no article", ErrGenerationFailed)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := g.validateDepositor(); err != nil {
		return nil, err
	}
	if a.EventCount() == 0 {
		return nil, fmt.Errorf("%w: article %s has no review events", ErrGenerationFailed, a.ID)
	}

	batchID := g.depositor.BatchIDPrefix + "." + p.BatchTimestamp()
	batch := doiBatch{
		Xmlns:          crossrefNamespace,
		XmlnsXSI:       xsiNamespace,
		XmlnsRel:       relationsNamespace,
		Version:        schemaVersion,
		SchemaLocation: schemaLocation,
		Head: head{
			DOIBatchID: batchID,
			Timestamp:  p.BatchTimestamp(),
			Depositor:  depositor{Name: g.depositor.Name, Email: g.depositor.Email},
			Registrant: g.depositor.Registrant,
		},
	}

	doc := &Document{BatchID: batchID}
	seen := make(map[string]struct{})
	reviewOf := relatedItem{Relation: interWorkRelation{RelationshipType: "isReviewOf", IdentifierType: "doi", Value: a.PreprintDOI}}

	for _, rev := range a.Revisions {
		var reviewDOIs []string
		for _, ev := range rev.Events {
			values := g.tokens(a, p, rev, ev)
			doi, resource, title, err := g.renderEvent(ev.Kind, values)
			if err != nil {
				return nil, fmt.Errorf("article %s revision %d event %d: %w", a.ID, rev.Index, ev.RunningNumber, err)
			}
			key := strings.ToLower(doi)
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("%w: article %s: DOI %s generated twice", ErrGenerationFailed, a.ID, doi)
			}
			seen[key] = struct{}{}

			record := peerReview{
				Stage:         "pre-publication",
				Type:          string(ev.Kind),
				RevisionRound: rev.Index,
				Language:      "en",
				Title:         title,
				ReviewDate:    reviewDate{Month: int(ev.Date.Month()), Day: ev.Date.Day(), Year: ev.Date.Year()},
				Institution:   institution{Name: g.depositor.Institution},
				DOIData:       doiData{DOI: doi, Resource: resource},
			}
			switch ev.Kind {
			case article.KindAuthorReply:
				record.Contributors = personContributors(ev.Authors)
				record.RunningNumber = "Author Reply"
				items := []relatedItem{reviewOf}
				for _, reviewDOI := range reviewDOIs {
					items = append(items, relatedItem{Relation: interWorkRelation{RelationshipType: "isReplyTo", IdentifierType: "doi", Value: reviewDOI}})
				}
				record.Program = program{RelatedItems: items}
			default:
				record.Contributors = contributors{Anonymous: &anonymous{Sequence: "first", Role: "author"}}
				record.RunningNumber = strconv.Itoa(ev.RunningNumber)
				record.Program = program{RelatedItems: []relatedItem{reviewOf}}
				reviewDOIs = append(reviewDOIs, doi)
			}
			batch.Body.PeerReviews = append(batch.Body.PeerReviews, record)
			doc.DOIs = append(doc.DOIs, RegisteredDOI{
				DOI:           doi,
				Resource:      resource,
				Kind:          ev.Kind,
				Revision:      rev.Index,
				RunningNumber: ev.RunningNumber,
			})
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrGenerationFailed, err)
	}
	buf.WriteByte('\n')
	doc.XML = buf.Bytes()
	return doc, nil
}

func (g *Generator) validateDepositor() error {
	missing := make([]string, 0, 4)
	if g.depositor.Name == "" {
		missing = append(missing, "name")
	}
	if g.depositor.Email == "" {
		missing = append(missing, "email")
	}
	if g.depositor.Registrant == "" {
		missing = append(missing, "registrant")
	}
	if g.depositor.Institution == "" {
		missing = append(missing, "institution")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: depositor %s not set", ErrGenerationFailed, strings.Join(missing, ", "))
	}
	return nil
}

func (g *Generator) tokens(a *article.Article, p Params, rev article.Revision, ev article.ReviewEvent) map[string]string {
	return map[string]string{
		TokenArticleID:      a.ID,
		TokenArticleDOI:     a.PreprintDOI,
		TokenArticleTitle:   a.Title,
		TokenRevision:       strconv.Itoa(rev.Index),
		TokenRunningNumber:  strconv.Itoa(ev.RunningNumber),
		TokenReviewNumber:   strconv.Itoa(ev.RunningNumber),
		TokenRandom:         p.randomToken(a.PreprintDOI, rev.Index, ev.RunningNumber),
		TokenYear:           strconv.Itoa(p.Timestamp.UTC().Year()),
		TokenBatchTimestamp: p.BatchTimestamp(),
	}
}

func (g *Generator) renderEvent(kind article.Kind, values map[string]string) (doi, resource, title string, err error) {
	titleTmpl, resourceTmpl := g.templates.reviewTitle, g.templates.reviewResourceURL
	if kind == article.KindAuthorReply {
		titleTmpl, resourceTmpl = g.templates.authorReplyTitle, g.templates.authorReplyResourceURL
	}
	if doi, err = g.templates.doi.render(values); err != nil {
		return "", "", "", err
	}
	if strings.TrimSpace(doi) == "" {
		return "", "", "", fmt.Errorf("%w: DOI template rendered empty", ErrGenerationFailed)
	}
	if resource, err = resourceTmpl.render(values); err != nil {
		return "", "", "", err
	}
	if title, err = titleTmpl.render(values); err != nil {
		return "", "", "", err
	}
	return doi, resource, title, nil
}

func personContributors(authors []meca.Author) contributors {
	persons := make([]personName, 0, len(authors))
	for i, a := range authors {
		p := personName{
			Sequence:  "additional",
			Role:      "author",
			GivenName: a.GivenName,
			Surname:   a.Surname,
		}
		if i == 0 {
			p.Sequence = "first"
		}
		if a.Affiliation != "" {
			p.Affiliations = &affiliations{Institutions: []institution{{Name: a.Affiliation}}}
		}
		if a.ORCID != nil && a.ORCID.ID != "" {
			p.ORCID = &orcid{Authenticated: a.ORCID.Authenticated, Value: a.ORCID.ID}
		}
		persons = append(persons, p)
	}
	if len(persons) == 0 {
		return contributors{Anonymous: &anonymous{Sequence: "first", Role: "author"}}
	}
	return contributors{Persons: persons}
}
