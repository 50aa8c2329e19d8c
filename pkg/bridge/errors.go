package bridge

import "strings"

// MissingHeaderError reports forwarding headers that were absent or empty
// under the forwarded URI policy. Headers keeps the fixed check order
// proto, host, port.
type MissingHeaderError struct {
	Headers []string
}

func (e *MissingHeaderError) Error() string {
	return `Missing "` + strings.Join(e.Headers, `", "`) + `" header(s).`
}
