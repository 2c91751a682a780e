package uscan

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// extractLinks returns the href targets of <a> tags in document order.
func extractLinks(content []byte) []string {
	var links []string

	z := html.NewTokenizer(bytes.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer failure, the links found so far are kept either way.
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr || !strings.EqualFold(string(name), "a") {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if len(val) > 0 {
						links = append(links, string(val))
					}
					break
				}
				if !more {
					break
				}
			}
		}
	}
}
