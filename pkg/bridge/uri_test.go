package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"value", []string{"value"}},
		{"   value1", []string{"value1"}},
		{"a,b", []string{"a", "b"}},
		{" a , b ,c ", []string{"a", "b", "c"}},
		{",value9", []string{"value9"}},
		{",value12, , ", []string{"value12"}},
		{" ", []string{}},
		{"", []string{}},
		{",,,", []string{}},
		{"\ta\t,\tb", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := normalizeHeader(tt.in)
		assert.Equal(t, tt.want, append([]string{}, got...), "input %q", tt.in)
	}
}

func TestParseURIPolicy(t *testing.T) {
	tests := []struct {
		mode, schema, host string
		wantMode           string
		wantErr            bool
	}{
		{"", "", "", ModeDefault, false},
		{"", "https", "", ModeExplicit, false},
		{"default", "", "", ModeDefault, false},
		{"default", "https", "", "", true},
		{"explicit", "HTTPS", "some-host", ModeExplicit, false},
		{"explicit", "", "some-host", ModeExplicit, false},
		{"explicit", "", "", "", true},
		{"forwarded", "", "", ModeForwarded, false},
		{"Forwarded", "", "", ModeForwarded, false},
		{"forwarded", "https", "", "", true},
		{"explicit", "ftp", "", "", true},
		{"proxy", "", "", "", true},
	}
	for _, tt := range tests {
		p, err := ParseURIPolicy(tt.mode, tt.schema, tt.host)
		if tt.wantErr {
			assert.Error(t, err, "%q %q %q", tt.mode, tt.schema, tt.host)
			continue
		}
		require.NoError(t, err, "%q %q %q", tt.mode, tt.schema, tt.host)
		assert.Equal(t, tt.wantMode, p.Mode())
	}
}

func TestParseURIPolicy_LowercasesSchema(t *testing.T) {
	p, err := ParseURIPolicy("explicit", "HTTPS", "h")
	require.NoError(t, err)
	uri, err := p.resolve(&fakeRequest{url: "/"}, "/")
	require.NoError(t, err)
	assert.Equal(t, "https://h/", uri)
}

func TestMissingHeaderError(t *testing.T) {
	err := &MissingHeaderError{Headers: []string{"x-forwarded-proto", "x-forwarded-host", "x-forwarded-port"}}
	assert.Equal(t, `Missing "x-forwarded-proto", "x-forwarded-host", "x-forwarded-port" header(s).`, err.Error())
}
