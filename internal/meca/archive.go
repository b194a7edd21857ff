package meca

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrInvalidArchive marks structural problems: not a zip, no manifest, or a
// required manifest item that is missing or ambiguous.
var ErrInvalidArchive = errors.New("invalid MECA archive")

// Manifest item types of interest. ItemTypeAuthorReply is what eJP exports use.
const (
	ItemTypeArticle     = "article-metadata"
	ItemTypeReviews     = "review-metadata"
	ItemTypeAuthorReply = "Response to Reviewers"

	manifestName = "manifest.xml"
)

// ManifestItem is one <item> entry of manifest.xml.
type ManifestItem struct {
	ID        string
	Type      string
	Version   string
	Href      string
	MediaType string
}

type manifestXML struct {
	Items []struct {
		ID       string `xml:"id,attr"`
		Type     string `xml:"type,attr"`
		Version  string `xml:"version,attr"`
		Instance struct {
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"instance"`
	} `xml:"item"`
}

// Archive is an opened MECA zip with its parsed manifest.
type Archive struct {
	path   string
	reader *zip.ReadCloser
	files  map[string]*zip.File
	items  []ManifestItem
}

// Open reads the zip directory and the manifest of the archive at p.
func Open(p string) (*Archive, error) {
	reader, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrInvalidArchive, p, err)
	}
	a := &Archive{path: p, reader: reader, files: make(map[string]*zip.File, len(reader.File))}
	for _, f := range reader.File {
		a.files[path.Clean(f.Name)] = f
	}
	if err := a.loadManifest(); err != nil {
		reader.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the underlying zip reader.
func (a *Archive) Close() error {
	if a == nil || a.reader == nil {
		return nil
	}
	return a.reader.Close()
}

// Items returns the manifest entries in document order.
func (a *Archive) Items() []ManifestItem {
	out := make([]ManifestItem, len(a.items))
	copy(out, a.items)
	return out
}

// ItemsOfType returns the manifest entries of the given type.
func (a *Archive) ItemsOfType(itemType string) []ManifestItem {
	var out []ManifestItem
	for _, item := range a.items {
		if item.Type == itemType {
			out = append(out, item)
		}
	}
	return out
}

func (a *Archive) loadManifest() error {
	if _, ok := a.files[manifestName]; !ok {
		return fmt.Errorf("%w: missing manifest file", ErrInvalidArchive)
	}
	var manifest manifestXML
	if err := a.decode(manifestName, &manifest); err != nil {
		return err
	}
	for _, item := range manifest.Items {
		a.items = append(a.items, ManifestItem{
			ID:        strings.TrimSpace(item.ID),
			Type:      strings.TrimSpace(item.Type),
			Version:   strings.TrimSpace(item.Version),
			Href:      strings.TrimSpace(item.Instance.Href),
			MediaType: strings.TrimSpace(item.Instance.MediaType),
		})
	}
	return nil
}

// decodeItem finds the single manifest item of itemType and decodes it into v.
// It returns false without error when no such item exists.
func (a *Archive) decodeItem(itemType string, v any) (bool, error) {
	items := a.ItemsOfType(itemType)
	switch len(items) {
	case 0:
		return false, nil
	case 1:
	default:
		return false, fmt.Errorf("%w: found %d files of type %q", ErrInvalidArchive, len(items), itemType)
	}
	return true, a.decode(items[0].Href, v)
}

func (a *Archive) decode(name string, v any) error {
	f, ok := a.files[path.Clean(name)]
	if !ok {
		return fmt.Errorf("%w: manifest references missing file %q", ErrInvalidArchive, name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrInvalidArchive, name, err)
	}
	defer rc.Close()
	if err := newDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("%w: parse %s: %w", ErrInvalidArchive, name, err)
	}
	return nil
}

// newDecoder accepts the HTML entity references eJP exports contain.
func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.Entity = xml.HTMLEntity
	return d
}
