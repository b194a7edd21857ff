package deposition

import "encoding/xml"

const (
	crossrefNamespace  = "http://www.crossref.org/schema/5.3.1"
	relationsNamespace = "http://www.crossref.org/relations.xsd"
	xsiNamespace       = "http://www.w3.org/2001/XMLSchema-instance"
	schemaVersion      = "5.3.1"
	schemaLocation     = "http://www.crossref.org/schema/5.3.1 http://www.crossref.org/schemas/crossref5.3.1.xsd"
)

type doiBatch struct {
	XMLName        xml.Name `xml:"doi_batch"`
	Xmlns          string   `xml:"xmlns,attr"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr"`
	XmlnsRel       string   `xml:"xmlns:rel,attr"`
	Version        string   `xml:"version,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	Head           head     `xml:"head"`
	Body           body     `xml:"body"`
}

type head struct {
	DOIBatchID string    `xml:"doi_batch_id"`
	Timestamp  string    `xml:"timestamp"`
	Depositor  depositor `xml:"depositor"`
	Registrant string    `xml:"registrant"`
}

type depositor struct {
	Name  string `xml:"depositor_name"`
	Email string `xml:"email_address"`
}

type body struct {
	PeerReviews []peerReview `xml:"peer_review"`
}

type peerReview struct {
	Stage         string       `xml:"stage,attr"`
	Type          string       `xml:"type,attr"`
	RevisionRound int          `xml:"revision-round,attr"`
	Language      string       `xml:"language,attr"`
	Contributors  contributors `xml:"contributors"`
	Title         string       `xml:"titles>title"`
	ReviewDate    reviewDate   `xml:"review_date"`
	Institution   institution  `xml:"institution"`
	RunningNumber string       `xml:"running_number"`
	Program       program      `xml:"rel:program"`
	DOIData       doiData      `xml:"doi_data"`
}

type contributors struct {
	Anonymous *anonymous   `xml:"anonymous,omitempty"`
	Persons   []personName `xml:"person_name"`
}

type anonymous struct {
	Sequence string `xml:"sequence,attr"`
	Role     string `xml:"contributor_role,attr"`
}

type personName struct {
	Sequence     string        `xml:"sequence,attr"`
	Role         string        `xml:"contributor_role,attr"`
	GivenName    string        `xml:"given_name,omitempty"`
	Surname      string        `xml:"surname"`
	Affiliations *affiliations `xml:"affiliations,omitempty"`
	ORCID        *orcid        `xml:"ORCID,omitempty"`
}

type affiliations struct {
	Institutions []institution `xml:"institution"`
}

type orcid struct {
	Authenticated bool   `xml:"authenticated,attr"`
	Value         string `xml:",chardata"`
}

type reviewDate struct {
	Month int `xml:"month"`
	Day   int `xml:"day"`
	Year  int `xml:"year"`
}

type institution struct {
	Name string `xml:"institution_name"`
}

type program struct {
	RelatedItems []relatedItem `xml:"rel:related_item"`
}

type relatedItem struct {
	Relation interWorkRelation `xml:"rel:inter_work_relation"`
}

type interWorkRelation struct {
	RelationshipType string `xml:"relationship-type,attr"`
	IdentifierType   string `xml:"identifier-type,attr"`
	Value            string `xml:",chardata"`
}

type doiData struct {
	DOI      string `xml:"doi"`
	Resource string `xml:"resource"`
}
