package hotpath

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/unionsquare/unionsquare/internal/values"
)

// ResolveURL composes the final upstream URI from a target base URL and
// the incoming request's path/query (§4.6). If target already carries a
// non-root path, it is used verbatim — the provider adapter has already
// composed the exact route. Otherwise target's trailing slash is trimmed
// and the incoming path-and-query is appended.
func ResolveURL(target values.TargetUrl, incomingPath, incomingRawQuery string) (values.TargetUrl, error) {
	u := target.URL()
	if u.Path != "" && u.Path != "/" {
		return target, nil
	}

	base := strings.TrimRight(target.String(), "/")
	pathAndQuery := incomingPath
	if incomingRawQuery != "" {
		pathAndQuery += "?" + incomingRawQuery
	}

	resolved := base + pathAndQuery
	if _, err := url.Parse(resolved); err != nil {
		return values.TargetUrl{}, fmt.Errorf("hotpath: invalid resolved target url %q: %w", resolved, err)
	}
	return values.ParseTargetUrl(resolved)
}
