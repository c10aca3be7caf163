package monitor

import "strings"

// MatchKeywords returns the keywords whose lower-cased text occurs in the
// lower-cased subject and body, in keyword order. Keywords that differ only
// by case are all kept.
func MatchKeywords(subject, body string, keywords []string) []string {
	text := strings.ToLower(subject + " " + body)

	var matched []string
	for _, k := range keywords {
		lk := strings.ToLower(k)
		if lk == "" {
			continue
		}
		if strings.Contains(text, lk) {
			matched = append(matched, k)
		}
	}
	return matched
}
