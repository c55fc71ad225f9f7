package lms

import "strings"

// NextLink extracts the rel="next" URL from a Link response header, empty
// string if there is no next page. The header looks like
// <https://lms/api?page=1>; rel="current", <https://lms/api?page=2>; rel="next"
func NextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		var url string
		next := false
		for _, seg := range strings.Split(part, ";") {
			seg = strings.TrimSpace(seg)
			switch {
			case strings.HasPrefix(seg, "<") && strings.HasSuffix(seg, ">"):
				url = strings.Trim(seg, "<>")
			case seg == `rel="next"` || seg == "rel=next":
				next = true
			}
		}
		if next && url != "" {
			return url
		}
	}
	return ""
}
