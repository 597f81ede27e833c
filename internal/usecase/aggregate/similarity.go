package aggregate

import (
	"net/url"
	"strings"
	"unicode"
)

// minTokens keeps short titles from matching on a couple of shared words.
const minTokens = 3

// identityParams are query parameters that name the resource itself
// (news.ycombinator.com/item?id=, youtube.com/watch?v=) and survive
// canonicalization.
var identityParams = []string{"id", "v", "p"}

// CanonicalURL lowercases scheme and host, upgrades http to https, drops
// "www.", the fragment, the trailing slash and every query parameter except
// identityParams.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" || scheme == "" {
		scheme = "https"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")

	kept := url.Values{}
	q := u.Query()
	for _, k := range identityParams {
		if v := q.Get(k); v != "" {
			kept.Set(k, v)
		}
	}
	out := scheme + "://" + host + path
	if len(kept) > 0 {
		out += "?" + kept.Encode()
	}
	return out
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "our": {},
	"so": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "we": {}, "with": {},
	"you": {}, "your": {},
}

// Tokens returns the lowercase word set of text without stopwords.
func Tokens(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// Jaccard is |a∩b| / |a∪b|. Sets below minTokens never match.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) < minTokens || len(b) < minTokens {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
