package findings

import "encoding/json"

// sections is the wire form of the nine slots, in report order.
type sections struct {
	Subdomains     []string   `json:"subdomains"`
	LiveSubdomains []string   `json:"live_subdomains"`
	DNSRecords     DNSRecords `json:"dns_records"`
	Whois          Whois      `json:"whois"`
	OpenPorts      []OpenPort `json:"open_ports"`
	Technologies   []string   `json:"technologies"`
	SSLAnalysis    TLSReport  `json:"ssl_analysis"`
	Headers        Headers    `json:"headers"`
	Breaches       []Breach   `json:"breaches"`
}

// MarshalJSON emits the nine slots keyed by slot name. Domain and stage status are left out.
func (f Findings) MarshalJSON() ([]byte, error) {
	return json.Marshal(sections{
		Subdomains:     f.Subdomains,
		LiveSubdomains: f.LiveSubdomains,
		DNSRecords:     f.DNSRecords,
		Whois:          f.Whois,
		OpenPorts:      f.OpenPorts,
		Technologies:   f.Technologies,
		SSLAnalysis:    f.SSLAnalysis,
		Headers:        f.Headers,
		Breaches:       f.Breaches,
	})
}
