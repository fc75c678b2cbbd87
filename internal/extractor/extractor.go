// Package extractor parses structured XML documents into normalized text
// and metadata ready for chunking.
package extractor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/civisdocs/corpusync/pkg/types"
)

// dcNamespace is the Dublin Core element namespace. Every element under
// it becomes an open metadata field keyed by its local name.
const dcNamespace = "http://purl.org/dc/elements/1.1/"

// Root attributes promoted to typed metadata fields.
var rootAttrs = map[string]func(*types.Metadata, string){
	"ID":           func(m *types.Metadata, v string) { m.DocID = v },
	"type":         func(m *types.Metadata, v string) { m.DocType = v },
	"spUrl":        func(m *types.Metadata, v string) { m.URL = v },
	"dateCreation": func(m *types.Metadata, v string) { m.DateCreated = v },
	"dateMaj":      func(m *types.Metadata, v string) { m.DateUpdated = v },
}

// Extractor turns one source file into a types.Document.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractFile parses the XML file at path. A document with no textual
// content is a valid outcome: the returned Document has an empty Content
// and the caller records it with zero chunks.
func (e *Extractor) ExtractFile(path string) (*types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return e.ExtractBytes(path, data)
}

// ExtractBytes parses an XML document already read into memory, so the
// caller can digest the exact bytes it indexes.
func (e *Extractor) ExtractBytes(path string, data []byte) (*types.Document, error) {
	doc, err := e.Extract(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	doc.SourceFile = path
	doc.DataSource = DataSource(path)
	return doc, nil
}

// Extract reads an XML document from r. Text is collected in document
// order with a single pass over the token stream: an element's direct
// text, then each child's content, then trailing text. Nothing is
// collected twice.
func (e *Extractor) Extract(r io.Reader) (*types.Document, error) {
	dec := xml.NewDecoder(r)

	var parts []string
	meta := types.Metadata{Extra: make(map[string]string)}

	// Element stack so character data can be attributed to its
	// immediately enclosing element.
	var stack []xml.Name
	seenRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !seenRoot {
				seenRoot = true
				for _, a := range t.Attr {
					if set, ok := rootAttrs[a.Name.Local]; ok {
						set(&meta, a.Value)
					}
				}
			}
			stack = append(stack, t.Name)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case xml.CharData:
			s := strings.TrimSpace(string(t))
			if s == "" {
				continue
			}
			parts = append(parts, s)
			if len(stack) > 0 {
				if cur := stack[len(stack)-1]; cur.Space == dcNamespace {
					if _, dup := meta.Extra[cur.Local]; !dup {
						meta.Extra[cur.Local] = s
					}
				}
			}
		}
	}

	return &types.Document{
		Content: strings.Join(parts, " "),
		Meta:    meta,
	}, nil
}

// DataSource infers the corpus tag from a path segment. Paths matching
// no known corpus get the sentinel tag rather than an error.
func DataSource(path string) string {
	switch {
	case strings.Contains(path, types.SourceVosdroits):
		return types.SourceVosdroits
	case strings.Contains(path, types.SourceEntreprendre):
		return types.SourceEntreprendre
	default:
		return types.SourceUnknown
	}
}
