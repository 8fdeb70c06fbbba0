package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-spladmin/core"
)

const (
	loginPath        = "auth/login"
	capabilitiesPath = "authorization/capabilities"
	exportPath       = "search/jobs/export"
)

// endpointFor maps a kind onto its management API collection path. The set
// mirrors core.Kinds; an unmapped kind is a programming error upstream.
func endpointFor(kind core.Kind) (string, error) {
	switch kind {
	case core.KindRole:
		return "authorization/roles", nil
	case core.KindUser:
		return "authentication/users", nil
	case core.KindApp:
		return "apps/local", nil
	case core.KindIndex:
		return "data/indexes", nil
	case core.KindEventType:
		return "saved/eventtypes", nil
	case core.KindSavedSearch:
		return "saved/searches", nil
	case core.KindInput:
		return "data/inputs/monitor", nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidKind, string(kind))
}

// namespacedKinds are served under the owner/app scoped prefix; the rest
// live in the global services tree regardless of the active namespace.
func kindIsNamespaced(kind core.Kind) bool {
	switch kind {
	case core.KindEventType, core.KindSavedSearch, core.KindInput:
		return true
	}
	return false
}

// collectionURL builds the absolute URL for a kind's collection, applying
// the owner/app prefix for namespaced kinds.
func (c *Client) collectionURL(kind core.Kind) (string, error) {
	endpoint, err := endpointFor(kind)
	if err != nil {
		return "", err
	}
	return c.serviceURL(endpoint, kindIsNamespaced(kind)), nil
}

// entityURL builds the absolute URL for one named member of a collection.
func (c *Client) entityURL(kind core.Kind, name string) (string, error) {
	collection, err := c.collectionURL(kind)
	if err != nil {
		return "", err
	}
	return collection + "/" + url.PathEscape(name), nil
}

func (c *Client) serviceURL(endpoint string, namespaced bool) string {
	base := strings.TrimSuffix(c.baseURL, "/")
	ns := c.namespace
	if namespaced && (ns.App != "" || ns.Owner != "") {
		owner := ns.Owner
		if owner == "" || owner == "*" {
			owner = "-"
		}
		app := ns.App
		if app == "" || app == "*" {
			app = "-"
		}
		return fmt.Sprintf("%s/servicesNS/%s/%s/%s", base, url.PathEscape(owner), url.PathEscape(app), endpoint)
	}
	return fmt.Sprintf("%s/services/%s", base, endpoint)
}
