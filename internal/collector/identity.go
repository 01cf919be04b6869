package collector

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ErrUnresolvableIdentifier means no video id could be derived from a raw
// provider value.
var ErrUnresolvableIdentifier = errors.New("unresolvable video identifier")

// identifierFields are probed in order when the raw value is a record.
var identifierFields = [...]string{"id", "videoId", "url", "videoUrl"}

// ExtractVideoID derives the video id from a raw provider value: either a
// URL string or a record map carrying one of the known id/url fields. The
// id is treated as opaque and never validated against a pattern.
func ExtractVideoID(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		if id := videoIDFromString(v); id != "" {
			return id, nil
		}
	case map[string]any:
		for _, field := range identifierFields {
			value, ok := v[field].(string)
			if !ok {
				continue
			}
			if id := videoIDFromString(value); id != "" {
				return id, nil
			}
		}
	}
	return "", wrapCategory(CategoryInvalidURL, fmt.Errorf("%w: %s", ErrUnresolvableIdentifier, describeRaw(raw)))
}

// videoIDFromString handles the URL shapes ids arrive in: a /shorts/<id>
// path, a watch URL with a v parameter, a youtu.be short link, or a bare
// id with no URL punctuation at all.
func videoIDFromString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "/?&") {
		return s
	}
	parsed, err := url.Parse(s)
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if host == "youtu.be" {
		if last := parts[len(parts)-1]; last != "" {
			return last
		}
		return ""
	}
	for i, part := range parts {
		if part == "shorts" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	if id := parsed.Query().Get("v"); id != "" {
		return id
	}
	return ""
}

func describeRaw(raw any) string {
	switch v := raw.(type) {
	case string:
		return strconv.Quote(v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("record with keys %v", keys)
	default:
		return fmt.Sprintf("%T", raw)
	}
}
