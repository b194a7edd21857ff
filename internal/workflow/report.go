package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mecadoi/internal/article"
	"mecadoi/internal/deposition"
)

// DepositedDOI is one DOI listed in the deposited report.
type DepositedDOI struct {
	DOI           string `yaml:"doi"`
	Resource      string `yaml:"resource"`
	Kind          string `yaml:"kind"`
	Revision      int    `yaml:"revision"`
	RunningNumber int    `yaml:"running_number"`
}

// DepositedArticle is one entry of the deposited report.
type DepositedArticle struct {
	ArchiveID   string         `yaml:"archive"`
	Path        string         `yaml:"path"`
	Title       string         `yaml:"title"`
	PreprintDOI string         `yaml:"preprint_doi"`
	Journal     string         `yaml:"journal,omitempty"`
	BatchID     string         `yaml:"batch_id"`
	DOIs        []DepositedDOI `yaml:"dois"`
}

func newDepositedArticle(archiveID, path string, a *article.Article, doc *deposition.Document) *DepositedArticle {
	out := &DepositedArticle{
		ArchiveID:   archiveID,
		Path:        path,
		Title:       a.Title,
		PreprintDOI: a.PreprintDOI,
		Journal:     a.Journal,
		BatchID:     doc.BatchID,
	}
	for _, d := range doc.DOIs {
		out.DOIs = append(out.DOIs, DepositedDOI{
			DOI:           d.DOI,
			Resource:      d.Resource,
			Kind:          string(d.Kind),
			Revision:      d.Revision,
			RunningNumber: d.RunningNumber,
		})
	}
	return out
}

// WriteDepositedReport writes <dir>/deposited/<runID>.yml listing the
// articles Crossref accepted. It writes nothing and returns "" when the list
// is empty.
func WriteDepositedReport(dir, runID string, articles []DepositedArticle) (string, error) {
	if len(articles) == 0 {
		return "", nil
	}
	target := filepath.Join(dir, "deposited")
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create deposited dir: %w", err)
	}
	data, err := yaml.Marshal(articles)
	if err != nil {
		return "", fmt.Errorf("encode deposited report: %w", err)
	}
	path := filepath.Join(target, runID+".yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write deposited report: %w", err)
	}
	return path, nil
}
