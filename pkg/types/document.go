package types

// Known data-source tags inferred from corpus file paths.
const (
	SourceVosdroits    = "vosdroits"
	SourceEntreprendre = "entreprendre"
	SourceUnknown      = "unknown"
)

// Metadata holds the fields extracted from a document. Well-known
// attributes get typed fields; everything else (Dublin Core elements,
// corpus-specific additions) lives in Extra.
type Metadata struct {
	DocID       string
	DocType     string
	URL         string
	DateCreated string
	DateUpdated string
	Extra       map[string]string
}

// Clone returns a deep copy so concurrent chunk builders never share maps.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Extra != nil {
		out.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Document is the normalized form of one source file: its concatenated
// text content plus extracted metadata.
type Document struct {
	SourceFile string
	DataSource string
	Content    string
	Meta       Metadata
}
