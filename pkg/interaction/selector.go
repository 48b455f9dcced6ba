package interaction

import "strings"

// Selector strings name a set of diagram elements. The renderer resolves
// them; the controller and legend only pass them around.
//
//	name:<speaker>   nodes whose speaker label equals <speaker>
//	color:<hex>      edges drawn in <hex>
//	search:<query>   nodes whose name or text contains <query>
const (
	selectorName   = "name:"
	selectorColor  = "color:"
	selectorSearch = "search:"
)

// NameSelector selects nodes by speaker label.
func NameSelector(name string) string { return selectorName + name }

// ColorSelector selects edges by color.
func ColorSelector(color string) string { return selectorColor + color }

// SearchSelector selects nodes matching a case-insensitive substring query.
func SearchSelector(query string) string { return selectorSearch + query }

// SplitSelector breaks a selector into its kind and value. Unknown formats
// come back with an empty kind so renderers can ignore them safely.
func SplitSelector(sel string) (kind, value string) {
	for _, prefix := range []string{selectorName, selectorColor, selectorSearch} {
		if strings.HasPrefix(sel, prefix) {
			return strings.TrimSuffix(prefix, ":"), strings.TrimPrefix(sel, prefix)
		}
	}
	return "", sel
}

// MatchesSearch reports whether a node's name or message text contains the
// query, case-insensitively. An empty query matches nothing.
func MatchesSearch(name, msg, query string) bool {
	if query == "" {
		return false
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(name), q) ||
		strings.Contains(strings.ToLower(msg), q)
}
