package push

import (
	"fmt"
	"net/url"
	"strings"
)

// URL derives the socket URL from the REST base URL: http becomes ws,
// https becomes wss, path is appended and the household (if any) is
// passed as a query parameter.
func URL(baseURL, path, householdID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("base url %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")

	q := u.Query()
	if householdID != "" {
		q.Set("household", householdID)
	} else {
		q.Del("household")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
