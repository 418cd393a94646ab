package quote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quoteindex/quoteindex/pkg/errors"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		q    Quote
		want string
	}{
		{
			name: "attribution and source",
			q:    Quote{Content: "some other quote", Attribution: "Seb", Source: "This test"},
			want: "'some other quote'\nSeb, This test",
		},
		{
			name: "anonymous",
			q:    Quote{Content: "Test quote"},
			want: "'Test quote'\nAnonymous",
		},
		{
			name: "lead-in gets ellipsis",
			q:    Quote{LeadIn: "On chess", Content: "study the endgame", Source: "Capablanca"},
			want: "On chess...\n'study the endgame'\nCapablanca",
		},
		{
			name: "already quoted and ellipsised",
			q:    Quote{LeadIn: "On chess...", Content: "'study the endgame'", Attribution: "Capablanca"},
			want: "On chess...\n'study the endgame'\nCapablanca",
		},
		{
			name: "whitespace trimmed",
			q:    Quote{Content: "  spaced  ", Source: "  Horace  "},
			want: "'spaced'\nHorace",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Format())
		})
	}
}

func TestParseWithLeadIn(t *testing.T) {
	in := "On chess...\n'[to succeed] you must study the endgame before everything else.'\nJose Raul Capablanca"
	q, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, Quote{
		LeadIn:  "On chess...",
		Content: "'[to succeed] you must study the endgame before everything else.'",
		Source:  "Jose Raul Capablanca",
	}, q)
}

func TestParseWithoutLeadIn(t *testing.T) {
	q, err := Parse("'Sometimes even good Homer nods off.'\nHorace, Ars Poetica\n")
	require.NoError(t, err)
	assert.Equal(t, Quote{
		Content: "'Sometimes even good Homer nods off.'",
		Source:  "Horace, Ars Poetica",
	}, q)
}

func TestParseSingleLineAndEmpty(t *testing.T) {
	q, err := Parse("just words")
	require.NoError(t, err)
	assert.Equal(t, "just words", q.Content)

	_, err = Parse("  \n ")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestFormatParseRoundTrip(t *testing.T) {
	orig := Quote{LeadIn: "On writing...", Content: "'Omit needless words.'", Attribution: "Strunk", Source: "Elements of Style"}
	q, err := Parse(orig.Format())
	require.NoError(t, err)
	assert.Equal(t, orig.LeadIn, q.LeadIn)
	assert.Equal(t, orig.Content, q.Content)
	assert.Equal(t, "Strunk, Elements of Style", q.Source)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Quote{Content: "fine"}.Validate())

	err := Quote{Content: "   "}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "content")

	err = Quote{Content: strings.Repeat("x", maxContentLength+1), Source: "a\nb"}.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
	assert.Equal(t, "content:content must be at most 4096 characters; source:source must be a single line", err.Error())
}
