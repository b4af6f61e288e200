package parser

import (
	"bufio"
	"regexp"
	"strings"
)

var regexLink = regexp.MustCompile(`(vmess|vless)://[^\s<>"']+`)

// ExtractLinks finds all supported share links in a blob of text, such
// as a subscription payload or a pasted message.
func ExtractLinks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var links []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		for _, link := range regexLink.FindAllString(scanner.Text(), -1) {
			links = append(links, strings.TrimRight(link, `.,;)"'`))
		}
	}
	return deduplicate(links)
}

func deduplicate(links []string) []string {
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, link := range links {
		if seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, link)
	}
	return out
}
