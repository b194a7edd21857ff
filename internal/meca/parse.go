package meca

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PreprintDOIMetaName is the custom-meta name eJP uses for the preprint DOI.
const PreprintDOIMetaName = "Pre-existing BioRxiv Preprint DOI"

type contribXML struct {
	Type    string `xml:"contrib-type,attr"`
	Corresp string `xml:"corresp,attr"`
	IDs     []struct {
		Type        string `xml:"contrib-id-type,attr"`
		SpecificUse string `xml:"specific-use,attr"`
		Value       string `xml:",chardata"`
	} `xml:"contrib-id"`
	GivenNames textContent `xml:"name>given-names"`
	Surname    textContent `xml:"name>surname"`
	Xrefs      []struct {
		RefType string `xml:"ref-type,attr"`
		RID     string `xml:"rid,attr"`
	} `xml:"xref"`
}

type contribGroupXML struct {
	Contribs []contribXML `xml:"contrib"`
	Affs     []struct {
		ID          string      `xml:"id,attr"`
		Institution textContent `xml:"institution"`
	} `xml:"aff"`
}

type articleXML struct {
	JournalTitle textContent `xml:"front>journal-meta>journal-title-group>journal-title"`
	Meta         struct {
		IDs []struct {
			Type  string `xml:"pub-id-type,attr"`
			Value string `xml:",chardata"`
		} `xml:"article-id"`
		Title        textContent     `xml:"title-group>article-title"`
		ContribGroup contribGroupXML `xml:"contrib-group"`
		Abstract     *textContent    `xml:"abstract"`
		CustomMeta   []struct {
			Name  textContent `xml:"meta-name"`
			Value textContent `xml:"meta-value"`
		} `xml:"custom-meta-group>custom-meta"`
	} `xml:"front>article-meta"`
}

type reviewGroupXML struct {
	Versions []struct {
		Revision string      `xml:"revision,attr"`
		Reviews  []reviewXML `xml:"review"`
	} `xml:"version"`
}

type reviewXML struct {
	ContribGroup contribGroupXML `xml:"contrib-group"`
	Dates        []struct {
		Type  string      `xml:"date-type,attr"`
		Year  textContent `xml:"year"`
		Month textContent `xml:"month"`
		Day   textContent `xml:"day"`
	} `xml:"history>date"`
	Items []struct {
		Question textContent `xml:"review-item-question>alt-title"`
		Response textContent `xml:"review-item-response>text"`
	} `xml:"review-item-group>review-item"`
}

// Parse reads the MECA archive at path into a Manuscript. Structural problems
// are reported wrapped in ErrInvalidArchive.
func Parse(path string) (*Manuscript, error) {
	archive, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return archive.Manuscript()
}

// Manuscript extracts the manuscript and its review process from the archive.
func (a *Archive) Manuscript() (*Manuscript, error) {
	var article articleXML
	found, err := a.decodeItem(ItemTypeArticle, &article)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: found no file of type %q", ErrInvalidArchive, ItemTypeArticle)
	}

	authors := authorsOf(article.Meta.ContribGroup, "author")
	m := &Manuscript{
		Title:       article.Meta.Title.String(),
		Journal:     article.JournalTitle.String(),
		Authors:     authors,
		PreprintDOI: preprintDOI(&article),
	}
	for _, id := range article.Meta.IDs {
		if id.Type == "doi" {
			m.DOI = cleanText(id.Value)
			break
		}
	}
	if article.Meta.Abstract != nil {
		m.Abstract = article.Meta.Abstract.String()
	}

	var reviews reviewGroupXML
	found, err = a.decodeItem(ItemTypeReviews, &reviews)
	if err != nil {
		return nil, err
	}
	if found {
		process, err := reviewProcess(&reviews, authors, a.ItemsOfType(ItemTypeAuthorReply))
		if err != nil {
			return nil, err
		}
		m.ReviewProcess = process
	}
	return m, nil
}

func preprintDOI(article *articleXML) string {
	for _, meta := range article.Meta.CustomMeta {
		if meta.Name.String() == PreprintDOIMetaName {
			return meta.Value.String()
		}
	}
	for _, meta := range article.Meta.CustomMeta {
		if strings.Contains(strings.ToLower(meta.Name.String()), "preprint doi") {
			return meta.Value.String()
		}
	}
	return ""
}

func reviewProcess(group *reviewGroupXML, articleAuthors []Author, replies []ManifestItem) ([]RevisionRound, error) {
	rounds := make([]RevisionRound, 0, len(group.Versions))
	for _, version := range group.Versions {
		revision := strings.TrimSpace(version.Revision)
		round := RevisionRound{RevisionID: revision, Reviews: make([]Review, 0, len(version.Reviews))}
		for _, r := range version.Reviews {
			assigned, err := assignedDate(&r)
			if err != nil {
				return nil, fmt.Errorf("%w: revision %q: %w", ErrInvalidArchive, revision, err)
			}
			review := Review{
				AssignedAt: assigned,
				Authors:    authorsOf(r.ContribGroup, "reviewer"),
			}
			for _, item := range r.Items {
				review.Items = append(review.Items, ReviewItem{
					Question: item.Question.String(),
					Answer:   plainText(string(item.Response)),
				})
			}
			round.Reviews = append(round.Reviews, review)
		}
		sort.SliceStable(round.Reviews, func(i, j int) bool {
			return round.Reviews[i].AssignedAt.Before(round.Reviews[j].AssignedAt)
		})
		for i := range round.Reviews {
			round.Reviews[i].RunningNumber = i + 1
		}
		for _, reply := range replies {
			if reply.Version == revision {
				round.AuthorReply = &AuthorReply{Authors: articleAuthors}
				break
			}
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

func assignedDate(r *reviewXML) (time.Time, error) {
	for _, d := range r.Dates {
		if d.Type != "assigned" {
			continue
		}
		year, err := strconv.Atoi(d.Year.String())
		if err != nil {
			return time.Time{}, fmt.Errorf("assigned year: %w", err)
		}
		month, err := strconv.Atoi(d.Month.String())
		if err != nil {
			return time.Time{}, fmt.Errorf("assigned month: %w", err)
		}
		day, err := strconv.Atoi(d.Day.String())
		if err != nil {
			return time.Time{}, fmt.Errorf("assigned day: %w", err)
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("review has no assigned date")
}

func authorsOf(group contribGroupXML, contribType string) []Author {
	affiliations := make(map[string]string, len(group.Affs))
	for _, aff := range group.Affs {
		affiliations[aff.ID] = aff.Institution.String()
	}
	var authors []Author
	for _, c := range group.Contribs {
		if c.Type != contribType {
			continue
		}
		author := Author{
			GivenName:     c.GivenNames.String(),
			Surname:       c.Surname.String(),
			Corresponding: c.Corresp == "yes",
		}
		for _, id := range c.IDs {
			if id.Type == "orcid" {
				author.ORCID = &ORCID{ID: cleanText(id.Value), Authenticated: id.SpecificUse == "authenticated"}
				break
			}
		}
		for _, x := range c.Xrefs {
			if x.RefType == "aff" && x.RID != "" {
				author.Affiliation = affiliations[x.RID]
				break
			}
		}
		authors = append(authors, author)
	}
	return authors
}
