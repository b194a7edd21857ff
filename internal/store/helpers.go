package store

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var recordColumns = []string{
	"id", "path", "preprint_doi", "title", "received_at", "state",
	"manuscript_json", "params_timestamp", "params_nonce", "deposition_xml",
	"submitted_at", "crossref_status", "verification_status",
	"lease_owner", "lease_expires_at", "acknowledged_at",
	"created_at", "updated_at",
}

var attemptColumns = []string{
	"id", "archive_id", "run_id", "from_state", "to_state", "outcome",
	"deposition_xml", "response", "error_message",
	"expected_dois", "matched_dois", "created_at",
}

type recordRow struct {
	ID                 string         `db:"id"`
	Path               string         `db:"path"`
	PreprintDOI        sql.NullString `db:"preprint_doi"`
	Title              sql.NullString `db:"title"`
	ReceivedAt         string         `db:"received_at"`
	State              string         `db:"state"`
	ManuscriptJSON     sql.NullString `db:"manuscript_json"`
	ParamsTimestamp    sql.NullString `db:"params_timestamp"`
	ParamsNonce        sql.NullString `db:"params_nonce"`
	DepositionXML      sql.NullString `db:"deposition_xml"`
	SubmittedAt        sql.NullString `db:"submitted_at"`
	CrossrefStatus     sql.NullString `db:"crossref_status"`
	VerificationStatus sql.NullString `db:"verification_status"`
	LeaseOwner         sql.NullString `db:"lease_owner"`
	LeaseExpiresAt     sql.NullString `db:"lease_expires_at"`
	AcknowledgedAt     sql.NullString `db:"acknowledged_at"`
	CreatedAt          string         `db:"created_at"`
	UpdatedAt          string         `db:"updated_at"`
}

func (r recordRow) record() *Record {
	rec := &Record{
		ID:                 r.ID,
		Path:               r.Path,
		PreprintDOI:        r.PreprintDOI.String,
		Title:              r.Title.String,
		ReceivedAt:         parseTime(r.ReceivedAt),
		State:              State(r.State),
		ManuscriptJSON:     r.ManuscriptJSON.String,
		DepositionXML:      r.DepositionXML.String,
		SubmittedAt:        parseNullTime(r.SubmittedAt),
		CrossrefStatus:     r.CrossrefStatus.String,
		VerificationStatus: r.VerificationStatus.String,
		LeaseOwner:         r.LeaseOwner.String,
		LeaseExpiresAt:     parseNullTime(r.LeaseExpiresAt),
		AcknowledgedAt:     parseNullTime(r.AcknowledgedAt),
		CreatedAt:          parseTime(r.CreatedAt),
		UpdatedAt:          parseTime(r.UpdatedAt),
	}
	if r.ParamsNonce.Valid && r.ParamsTimestamp.Valid {
		rec.Params = &GenerationParams{
			Timestamp: parseTime(r.ParamsTimestamp.String),
			Nonce:     r.ParamsNonce.String,
		}
	}
	return rec
}

type attemptRow struct {
	ID            int64          `db:"id"`
	ArchiveID     string         `db:"archive_id"`
	RunID         string         `db:"run_id"`
	FromState     string         `db:"from_state"`
	ToState       string         `db:"to_state"`
	Outcome       string         `db:"outcome"`
	DepositionXML sql.NullString `db:"deposition_xml"`
	Response      sql.NullString `db:"response"`
	ErrorMessage  sql.NullString `db:"error_message"`
	ExpectedDOIs  int            `db:"expected_dois"`
	MatchedDOIs   int            `db:"matched_dois"`
	CreatedAt     string         `db:"created_at"`
}

func (r attemptRow) attempt() Attempt {
	return Attempt{
		ID:            r.ID,
		ArchiveID:     r.ArchiveID,
		RunID:         r.RunID,
		FromState:     State(r.FromState),
		ToState:       State(r.ToState),
		Outcome:       Outcome(r.Outcome),
		DepositionXML: r.DepositionXML.String,
		Response:      r.Response.String,
		ErrorMessage:  r.ErrorMessage.String,
		ExpectedDOIs:  r.ExpectedDOIs,
		MatchedDOIs:   r.MatchedDOIs,
		CreatedAt:     parseTime(r.CreatedAt),
	}
}

type doiRow struct {
	DOI       string `db:"doi"`
	ArchiveID string `db:"archive_id"`
	Resource  string `db:"resource"`
	Kind      string `db:"kind"`
	ClaimedAt string `db:"claimed_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseTime(value.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func selectRecords() sq.SelectBuilder {
	return sq.Select(recordColumns...).From("archives")
}

// rangeFilter applies a receipt date range to a query.
func rangeFilter(q sq.SelectBuilder, r Range) sq.SelectBuilder {
	if !r.From.IsZero() {
		q = q.Where(sq.GtOrEq{"received_at": formatTime(r.From)})
	}
	if !r.Until.IsZero() {
		q = q.Where(sq.Lt{"received_at": formatTime(r.Until)})
	}
	return q
}

func stateStrings(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
