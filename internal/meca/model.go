package meca

import "time"

// Manuscript is the article packaged in a MECA archive together with its
// review history.
type Manuscript struct {
	DOI         string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Title       string   `json:"title" yaml:"title"`
	PreprintDOI string   `json:"preprint_doi,omitempty" yaml:"preprint_doi,omitempty"`
	Journal     string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Abstract    string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Authors     []Author `json:"authors" yaml:"authors"`
	// ReviewProcess is nil when the archive carries no review metadata.
	ReviewProcess []RevisionRound `json:"review_process,omitempty" yaml:"review_process,omitempty"`
}

// HasReviews reports whether any revision round holds a review or an author reply.
func (m *Manuscript) HasReviews() bool {
	if m == nil {
		return false
	}
	for _, round := range m.ReviewProcess {
		if len(round.Reviews) > 0 || round.AuthorReply != nil {
			return true
		}
	}
	return false
}

// Author is a contributor to the manuscript or a review.
type Author struct {
	GivenName     string `json:"given_name,omitempty" yaml:"given_name,omitempty"`
	Surname       string `json:"surname" yaml:"surname"`
	ORCID         *ORCID `json:"orcid,omitempty" yaml:"orcid,omitempty"`
	Affiliation   string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
	Corresponding bool   `json:"corresponding,omitempty" yaml:"corresponding,omitempty"`
}

type ORCID struct {
	ID            string `json:"id" yaml:"id"`
	Authenticated bool   `json:"authenticated" yaml:"authenticated"`
}

// RevisionRound groups the referee reports of one manuscript version with the
// optional author response.
type RevisionRound struct {
	RevisionID  string       `json:"revision_id" yaml:"revision_id"`
	Reviews     []Review     `json:"reviews" yaml:"reviews"`
	AuthorReply *AuthorReply `json:"author_reply,omitempty" yaml:"author_reply,omitempty"`
}

// Review is one referee report. RunningNumber is 1-based within its round and
// follows the order in which reviewers were assigned.
type Review struct {
	RunningNumber int          `json:"running_number" yaml:"running_number"`
	AssignedAt    time.Time    `json:"assigned_at" yaml:"assigned_at"`
	Authors       []Author     `json:"authors,omitempty" yaml:"authors,omitempty"`
	Items         []ReviewItem `json:"items,omitempty" yaml:"items,omitempty"`
}

// ReviewItem is a question from the review form and the reviewer's answer.
type ReviewItem struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// AuthorReply marks the presence of a response to reviewers. Its authors are
// the manuscript authors.
type AuthorReply struct {
	Authors []Author `json:"authors,omitempty" yaml:"authors,omitempty"`
}
