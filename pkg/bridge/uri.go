package bridge

import (
	"fmt"
	"strings"

	"httpbridge/pkg/native"
)

const (
	headerHost           = "host"
	headerForwardedProto = "x-forwarded-proto"
	headerForwardedHost  = "x-forwarded-host"
	headerForwardedPort  = "x-forwarded-port"

	defaultSchema = "http"
	defaultHost   = "localhost"
)

// Policy modes as they appear in configuration.
const (
	ModeDefault   = "default"
	ModeExplicit  = "explicit"
	ModeForwarded = "forwarded"
)

// URIPolicy decides how the absolute request URI is assembled. The set of
// policies is closed: use DefaultURI, ExplicitURI or ForwardedURI.
type URIPolicy interface {
	// Mode returns the configuration name of the policy.
	Mode() string
	resolve(req native.Request, pathAndQuery string) (string, error)
}

type explicitURI struct {
	schema string
	host   string
}

type forwardedURI struct{}

// DefaultURI uses "http" and the Host header, falling back to "localhost".
func DefaultURI() URIPolicy { return explicitURI{} }

// ExplicitURI overrides schema and/or host. Empty values fall back as in
// DefaultURI.
func ExplicitURI(schema, host string) URIPolicy {
	return explicitURI{schema: schema, host: host}
}

// ForwardedURI takes schema, host and port from the x-forwarded-proto,
// x-forwarded-host and x-forwarded-port headers. All three are required.
func ForwardedURI() URIPolicy { return forwardedURI{} }

// ParseURIPolicy builds a policy from configuration values. An empty mode
// selects explicit when an override is set, default otherwise.
func ParseURIPolicy(mode, schema, host string) (URIPolicy, error) {
	schema = strings.ToLower(strings.TrimSpace(schema))
	host = strings.TrimSpace(host)
	if schema != "" && schema != "http" && schema != "https" {
		return nil, fmt.Errorf("invalid uri schema %q: want http or https", schema)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "":
		if schema == "" && host == "" {
			return DefaultURI(), nil
		}
		return ExplicitURI(schema, host), nil
	case ModeDefault:
		if schema != "" || host != "" {
			return nil, fmt.Errorf("uri mode %q takes no schema or host, use %q", ModeDefault, ModeExplicit)
		}
		return DefaultURI(), nil
	case ModeExplicit:
		if schema == "" && host == "" {
			return nil, fmt.Errorf("uri mode %q needs a schema or host", ModeExplicit)
		}
		return ExplicitURI(schema, host), nil
	case ModeForwarded:
		if schema != "" || host != "" {
			return nil, fmt.Errorf("uri mode %q takes no schema or host", ModeForwarded)
		}
		return ForwardedURI(), nil
	default:
		return nil, fmt.Errorf("unknown uri mode %q", mode)
	}
}

func (p explicitURI) Mode() string {
	if p.schema == "" && p.host == "" {
		return ModeDefault
	}
	return ModeExplicit
}

func (p explicitURI) resolve(req native.Request, pathAndQuery string) (string, error) {
	schema := p.schema
	if schema == "" {
		schema = defaultSchema
	}
	host := p.host
	if host == "" {
		host = req.Header(headerHost)
	}
	if host == "" {
		host = defaultHost
	}
	return schema + "://" + host + pathAndQuery, nil
}

func (forwardedURI) Mode() string { return ModeForwarded }

func (forwardedURI) resolve(req native.Request, pathAndQuery string) (string, error) {
	names := [...]string{headerForwardedProto, headerForwardedHost, headerForwardedPort}
	var values [len(names)]string
	var missing []string
	for i, name := range names {
		values[i] = req.Header(name)
		if values[i] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", &MissingHeaderError{Headers: missing}
	}
	return values[0] + "://" + values[1] + ":" + values[2] + pathAndQuery, nil
}

func pathAndQuery(req native.Request) string {
	if q := req.Query(); q != "" {
		return req.URL() + "?" + q
	}
	return req.URL()
}
