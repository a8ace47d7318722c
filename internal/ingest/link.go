// Package ingest turns deep links into pending installs and drives each one
// through download, extraction, normalization, placement and enrichment.
package ingest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	errs "github.com/samhoang/modhub/internal/errors"
)

// DefaultScheme is the URL scheme modhub registers for deep links
const DefaultScheme = "modhub"

// Link is a parsed deep link
type Link struct {
	Raw        string `json:"raw"`
	URL        string `json:"url"`
	Type       string `json:"type,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

var (
	numericRe = regexp.MustCompile(`^\d+$`)
	modPathRe = regexp.MustCompile(`/(?:mods|mmdl|dl)/(\d+)`)
)

// ParseLink decodes "<scheme>:<url>[,<type>,<id>]". A payload that is not
// already a plain http(s) URL is unescaped once. The scheme prefix is
// optional so bare URLs also parse.
func ParseLink(raw, scheme string) (*Link, error) {
	if scheme == "" {
		scheme = DefaultScheme
	}

	payload := strings.TrimSpace(raw)
	lower := strings.ToLower(payload)
	switch {
	case strings.HasPrefix(lower, scheme+"://"):
		payload = payload[len(scheme)+3:]
	case strings.HasPrefix(lower, scheme+":"):
		payload = payload[len(scheme)+1:]
	}

	if !hasHTTPPrefix(payload) {
		if unescaped, err := url.PathUnescape(payload); err == nil {
			payload = unescaped
		}
	}

	fields := strings.Split(payload, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	u, err := url.Parse(fields[0])
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidLinkFormat, raw)
	}

	link := &Link{Raw: raw, URL: u.String()}
	for _, f := range fields[1:] {
		switch {
		case numericRe.MatchString(f):
			link.ExternalID = f
		case link.Type == "":
			link.Type = f
		}
	}
	if link.ExternalID == "" {
		if m := modPathRe.FindStringSubmatch(u.Path); m != nil {
			link.ExternalID = m[1]
		}
	}
	return link, nil
}

func hasHTTPPrefix(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
