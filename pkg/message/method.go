package message

// Method is an upper-case HTTP request method.
type Method string

const (
	MethodConnect Method = "CONNECT"
	MethodDelete  Method = "DELETE"
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodPatch   Method = "PATCH"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodTrace   Method = "TRACE"
)

var knownMethods = map[Method]struct{}{
	MethodConnect: {},
	MethodDelete:  {},
	MethodGet:     {},
	MethodHead:    {},
	MethodOptions: {},
	MethodPatch:   {},
	MethodPost:    {},
	MethodPut:     {},
	MethodTrace:   {},
}

// Valid reports whether m is one of the enumerated methods.
func (m Method) Valid() bool {
	_, ok := knownMethods[m]
	return ok
}

func (m Method) String() string { return string(m) }
