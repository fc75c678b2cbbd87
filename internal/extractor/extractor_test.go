package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civisdocs/corpusync/pkg/types"
)

func TestExtractTextInDocumentOrder(t *testing.T) {
	xml := `<root>first <a>second <b>third</b> fourth</a> fifth</root>`

	doc, err := New().Extract(strings.NewReader(xml))
	require.NoError(t, err)
	assert.Equal(t, "first second third fourth fifth", doc.Content)
}

func TestExtractTextNoDuplication(t *testing.T) {
	// Text appearing inside nested elements must be collected exactly
	// once, even when siblings carry trailing text.
	xml := `<root><p>alpha</p><p>beta <em>gamma</em> delta</p></root>`

	doc, err := New().Extract(strings.NewReader(xml))
	require.NoError(t, err)
	assert.Equal(t, "alpha beta gamma delta", doc.Content)
	assert.Equal(t, 1, strings.Count(doc.Content, "gamma"))
}

func TestExtractRootAttributes(t *testing.T) {
	xml := `<publication ID="F1234" type="fiche" spUrl="https://example.org/F1234"
		dateCreation="2020-01-01" dateMaj="2024-06-01">body</publication>`

	doc, err := New().Extract(strings.NewReader(xml))
	require.NoError(t, err)
	assert.Equal(t, "F1234", doc.Meta.DocID)
	assert.Equal(t, "fiche", doc.Meta.DocType)
	assert.Equal(t, "https://example.org/F1234", doc.Meta.URL)
	assert.Equal(t, "2020-01-01", doc.Meta.DateCreated)
	assert.Equal(t, "2024-06-01", doc.Meta.DateUpdated)
}

func TestExtractDublinCore(t *testing.T) {
	xml := `<root xmlns:dc="http://purl.org/dc/elements/1.1/">
		<dc:title>Carte d'identité</dc:title>
		<dc:subject>papiers</dc:subject>
		<body>content here</body>
	</root>`

	doc, err := New().Extract(strings.NewReader(xml))
	require.NoError(t, err)
	assert.Equal(t, "Carte d'identité", doc.Meta.Extra["title"])
	assert.Equal(t, "papiers", doc.Meta.Extra["subject"])
	assert.Contains(t, doc.Content, "content here")
}

func TestExtractEmptyBody(t *testing.T) {
	doc, err := New().Extract(strings.NewReader(`<root ID="F9"></root>`))
	require.NoError(t, err)
	assert.Empty(t, doc.Content, "empty body is a valid zero-chunk outcome")
	assert.Equal(t, "F9", doc.Meta.DocID)
}

func TestExtractMalformed(t *testing.T) {
	_, err := New().Extract(strings.NewReader(`<root><unclosed></root>`))
	assert.Error(t, err)
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vosdroits-latest", "F1.xml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`<root ID="F1">hello world</root>`), 0o644))

	doc, err := New().ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.SourceFile)
	assert.Equal(t, types.SourceVosdroits, doc.DataSource)
	assert.Equal(t, "hello world", doc.Content)
}

func TestDataSource(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"data/service-public/vosdroits-latest/F100.xml", types.SourceVosdroits},
		{"data/service-public/entreprendre-latest/F200.xml", types.SourceEntreprendre},
		{"data/other/F300.xml", types.SourceUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DataSource(tt.path), tt.path)
	}
}
