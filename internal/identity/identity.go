// Package identity derives stable content-addressed item ids from source URLs.
package identity

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// urlNamespace is the fixed namespace for UUIDv5 id derivation. Changing it
// breaks dedup against previously stored data.
var urlNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// trackingParams are query parameters stripped before normalization. The list
// is part of the id contract; extending it changes existing ids for URLs that
// carry the new parameter.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"ref":          true,
	"fbclid":       true,
	"gclid":        true,
	"mc_cid":       true,
	"mc_eid":       true,
}

// Resolve turns a raw source URL into a deterministic item id. Two URLs that
// differ only in fragment or tracking parameters resolve to the same id.
// Never fails: an unparsable URL is hashed as-is.
func Resolve(rawURL string) string {
	return uuid.NewSHA1(urlNamespace, []byte(Normalize(rawURL))).String()
}

// Normalize strips the fragment and tracking query parameters, keeping the
// remaining parameters in their original order.
func Normalize(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return rawURL
	}

	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		kept := make([]string, 0, 4)
		for _, pair := range strings.Split(parsed.RawQuery, "&") {
			if pair == "" {
				continue
			}
			key, value, _ := strings.Cut(pair, "=")
			decoded, err := url.QueryUnescape(key)
			if err != nil {
				decoded = key
			}
			if trackingParams[decoded] {
				continue
			}
			kept = append(kept, key+"="+value)
		}
		parsed.RawQuery = strings.Join(kept, "&")
	}

	return parsed.String()
}
