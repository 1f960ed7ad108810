package findings

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yajur-khanna/asm-tool/internal/stage"
)

// SchemaError reports stage slots that were never filled. A correctly wired driver never
// produces one; when it happens the domain is abandoned.
type SchemaError struct {
	Domain  string
	Missing []Slot
}

func (e *SchemaError) Error() string {
	names := make([]string, len(e.Missing))
	for i, s := range e.Missing {
		names[i] = string(s)
	}
	return fmt.Sprintf("findings for %s: missing stage slots: %s", e.Domain, strings.Join(names, ", "))
}

// Aggregate freezes the nine stage outputs into one Findings value. It performs no
// computation beyond restructuring: containers are copied, DNS types and security
// headers are filled in, technologies become a sorted set.
func Aggregate(domain string, out Outputs) (Findings, error) {
	if missing := out.missing(); len(missing) > 0 {
		return Findings{}, &SchemaError{Domain: domain, Missing: missing}
	}

	f := Findings{
		Domain:         domain,
		Subdomains:     cloneStrings(out.Subdomains.Value()),
		LiveSubdomains: cloneStrings(out.LiveSubdomains.Value()),
		DNSRecords:     normaliseDNS(out.DNSRecords.Value()),
		Whois:          cloneWhois(out.Whois.Value()),
		OpenPorts:      clonePorts(out.OpenPorts.Value()),
		Technologies:   technologySet(out.Technologies.Value()),
		SSLAnalysis:    TLSReport(cloneMap(out.SSLAnalysis.Value())),
		Headers:        normaliseHeaders(out.Headers.Value()),
		Breaches:       cloneBreaches(out.Breaches.Value()),
		StageStatus: map[Slot]stage.Status{
			SlotSubdomains:     out.Subdomains.Status(),
			SlotLiveSubdomains: out.LiveSubdomains.Status(),
			SlotDNSRecords:     out.DNSRecords.Status(),
			SlotWhois:          out.Whois.Status(),
			SlotOpenPorts:      out.OpenPorts.Status(),
			SlotTechnologies:   out.Technologies.Status(),
			SlotSSLAnalysis:    out.SSLAnalysis.Status(),
			SlotHeaders:        out.Headers.Status(),
			SlotBreaches:       out.Breaches.Status(),
		},
	}

	return f, nil
}

func (o Outputs) missing() []Slot {
	present := map[Slot]bool{
		SlotSubdomains:     o.Subdomains != nil,
		SlotLiveSubdomains: o.LiveSubdomains != nil,
		SlotDNSRecords:     o.DNSRecords != nil,
		SlotWhois:          o.Whois != nil,
		SlotOpenPorts:      o.OpenPorts != nil,
		SlotTechnologies:   o.Technologies != nil,
		SlotSSLAnalysis:    o.SSLAnalysis != nil,
		SlotHeaders:        o.Headers != nil,
		SlotBreaches:       o.Breaches != nil,
	}

	var missing []Slot
	for _, s := range Slots {
		if !present[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

// Unavailable lists the slots whose stage could not run.
func (f Findings) Unavailable() []Slot {
	var out []Slot
	for _, s := range Slots {
		if f.StageStatus[s] == stage.StatusUnavailable {
			out = append(out, s)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func technologySet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normaliseDNS(in DNSRecords) DNSRecords {
	out := make(DNSRecords, len(DNSRecordTypes))
	for _, rt := range DNSRecordTypes {
		out[rt] = []string{}
	}
	for rt, values := range in {
		out[strings.ToUpper(rt)] = cloneStrings(values)
	}
	return out
}

func normaliseHeaders(in Headers) Headers {
	out := make(Headers, len(SecurityHeaders))
	for _, name := range SecurityHeaders {
		out[name] = nil
		if v, ok := in[name]; ok && v != nil {
			value := *v
			out[name] = &value
		}
	}
	return out
}

func cloneWhois(in Whois) Whois {
	out := in
	if in.NameServers != nil {
		out.NameServers = cloneStrings(in.NameServers)
	}
	return out
}

func clonePorts(in []OpenPort) []OpenPort {
	out := make([]OpenPort, len(in))
	copy(out, in)
	return out
}

func cloneBreaches(in []Breach) []Breach {
	out := make([]Breach, 0, len(in))
	for _, b := range in {
		out = append(out, Breach(cloneMap(b)))
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case TLSReport:
		return TLSReport(cloneMap(t))
	case Breach:
		return Breach(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return cloneStrings(t)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = cloneMap(e)
		}
		return out
	default:
		return v
	}
}
