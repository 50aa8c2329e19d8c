package message

import (
	"net/url"
	"strconv"
	"strings"
)

// URI is an absolute request URI split into its components.
// Query holds the raw query string without the leading '?'.
type URI struct {
	Schema   string
	UserInfo string
	Host     string
	Port     int
	Path     string
	Query    string
	Fragment string
}

// Authority returns [userinfo@]host[:port].
func (u URI) Authority() string {
	var b strings.Builder
	if u.UserInfo != "" {
		b.WriteString(u.UserInfo)
		b.WriteByte('@')
	}
	if strings.Contains(u.Host, ":") && !strings.HasPrefix(u.Host, "[") {
		// ipv6 literal
		b.WriteByte('[')
		b.WriteString(u.Host)
		b.WriteByte(']')
	} else {
		b.WriteString(u.Host)
	}
	if u.Port > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(u.Port))
	}
	return b.String()
}

// QueryValues parses the raw query. Malformed pairs are skipped.
func (u URI) QueryValues() url.Values {
	v, _ := url.ParseQuery(u.Query)
	return v
}

func (u URI) String() string {
	var b strings.Builder
	if u.Schema != "" {
		b.WriteString(u.Schema)
		b.WriteString("://")
	}
	b.WriteString(u.Authority())
	b.WriteString(u.Path)
	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}
