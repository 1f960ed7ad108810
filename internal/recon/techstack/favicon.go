package techstack

import (
	"encoding/base64"
	"strings"

	"github.com/twmb/murmur3"
)

// knownFavicons maps Shodan-style favicon hashes to the product they identify.
var knownFavicons = map[int32]string{
	708578229:   "WordPress",
	1713906415:  "Drupal",
	-235893474:  "Joomla",
	1842519814:  "Shopify",
	-1248316168: "Magento",
	81586312:    "GitLab",
	-766957629:  "Jenkins",
	-1255347784: "Grafana",
	-1336066072: "JIRA",
	398081544:   "Confluence",
	1953045938:  "Prometheus",
	-1205822479: "Splunk",
	2128322903:  "Fortinet",
	743365239:   "Palo Alto Networks",
	1942532307:  "pfSense",
	1588244429:  "Django",
	-1420295627: "Laravel",
}

// FaviconHash returns the Shodan http.favicon.hash of an icon: murmur3 over the
// MIME-style base64 encoding (76-column lines, trailing newline), as a signed int.
func FaviconHash(data []byte) int32 {
	return int32(murmur3.Sum32([]byte(mimeBase64(data))))
}

func mimeBase64(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	b.Grow(len(encoded) + len(encoded)/76 + 1)
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteByte('\n')
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteByte('\n')
	return b.String()
}
