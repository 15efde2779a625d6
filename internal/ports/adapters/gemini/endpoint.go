package gemini

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// hostSet holds lower-cased host names without ports.
type hostSet map[string]struct{}

var googleHosts = hostSet{"generativelanguage.googleapis.com": {}}

// newHostSet accepts bare hosts, host:port pairs and scheme-prefixed entries.
// An empty result falls back to the Google API host.
func newHostSet(entries []string) hostSet {
	set := hostSet{}
	for _, e := range entries {
		if h := hostOnly(e); h != "" {
			set[h] = struct{}{}
		}
	}
	if len(set) == 0 {
		return googleHosts
	}
	return set
}

func (s hostSet) has(host string) bool {
	_, ok := s[strings.ToLower(host)]
	return ok
}

func hostOnly(entry string) string {
	e := strings.ToLower(strings.TrimSpace(entry))
	if _, rest, ok := strings.Cut(e, "://"); ok {
		e = rest
	}
	e, _, _ = strings.Cut(e, "/")
	if h, _, err := net.SplitHostPort(e); err == nil {
		return h
	}
	return e
}

// ParseAllowedHosts splits the comma separated GEMINI_ALLOWED_HOSTS value.
func ParseAllowedHosts(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.Split(v, ",")
}

func baseURLOrDefault(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(raw, "/")
}

// ValidateBaseURL rejects anything but an https URL on an allowed host.
// The API key travels with every request to this URL.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	raw := baseURLOrDefault(baseURL)
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid GEMINI_BASE_URL: %w", err)
	}
	if reason := endpointProblem(u, newHostSet(allowedHosts)); reason != "" {
		return fmt.Errorf("invalid GEMINI_BASE_URL %q: %s", raw, reason)
	}
	return nil
}

func endpointProblem(u *url.URL, hosts hostSet) string {
	switch {
	case !u.IsAbs() || u.Hostname() == "":
		return "absolute URL with host is required"
	case u.User != nil:
		return "userinfo is not allowed"
	case u.RawQuery != "" || u.Fragment != "":
		return "query and fragment are not allowed"
	case !strings.EqualFold(u.Scheme, "https"):
		return "https is required"
	case !hosts.has(u.Hostname()):
		return fmt.Sprintf("host %q is not in GEMINI_ALLOWED_HOSTS", strings.ToLower(u.Hostname()))
	}
	return ""
}

// sessionProblem vets the upload URL handed back by the start call before
// any file bytes go to it. The configured base origin is always trusted;
// any other target must be https on an allowed host.
func (a *Adapter) sessionProblem(u *url.URL) string {
	if !u.IsAbs() || u.Hostname() == "" {
		return "absolute URL with host is required"
	}
	if u.User != nil {
		return "userinfo is not allowed"
	}
	if base, err := url.Parse(a.baseURL); err == nil &&
		strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host) {
		return ""
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return "https is required"
	}
	if !a.hosts.has(u.Hostname()) {
		return fmt.Sprintf("host %q is not allowed", strings.ToLower(u.Hostname()))
	}
	return ""
}
