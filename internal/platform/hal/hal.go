// Package hal renders resources in the Hypertext Application Language
// (application/hal+json) form: entity fields plus a "_links" object, and
// collections wrapped in "_embedded".
package hal

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const MediaType = "application/hal+json"

type Link struct {
	Href string `json:"href"`
}

// Links maps relation names to links.
type Links map[string]Link

// Add sets rel to href and returns l for chaining.
func (l Links) Add(rel, href string) Links {
	l[rel] = Link{Href: href}
	return l
}

// Resource is a single entity with links. Payload must marshal to a JSON
// object.
type Resource struct {
	Payload interface{}
	Links   Links
}

func NewResource(payload interface{}) *Resource {
	return &Resource{Payload: payload, Links: Links{}}
}

func (r *Resource) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("hal payload must be an object: %w", err)
	}
	if len(r.Links) > 0 {
		links, err := json.Marshal(r.Links)
		if err != nil {
			return nil, err
		}
		fields["_links"] = links
	}
	return json.Marshal(fields)
}

// Collection embeds resources under a single relation name. The "_embedded"
// object is omitted when there are no items.
type Collection struct {
	Embedded map[string][]*Resource `json:"_embedded,omitempty"`
	Links    Links                  `json:"_links,omitempty"`
}

func NewCollection(rel string, items []*Resource) *Collection {
	c := &Collection{Links: Links{}}
	if len(items) > 0 {
		c.Embedded = map[string][]*Resource{rel: items}
	}
	return c
}

// Wants reports whether the client listed the HAL media type in Accept.
func Wants(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get(echo.HeaderAccept), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == MediaType {
			return true
		}
	}
	return false
}

// BaseURL returns scheme://host of the request. X-Forwarded-Proto and
// X-Forwarded-Host override the connection values; with a list of hosts the
// first (client-facing) one wins.
func BaseURL(c echo.Context) string {
	host := c.Request().Host
	if fwd := c.Request().Header.Get("X-Forwarded-Host"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		if fwd = strings.TrimSpace(fwd); fwd != "" {
			host = fwd
		}
	}
	return c.Scheme() + "://" + host
}

// Render writes v with the HAL content type.
func Render(c echo.Context, status int, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, MediaType, body)
}
