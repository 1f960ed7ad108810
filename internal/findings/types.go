// Package findings defines the per-domain findings record and the aggregator that builds it.
package findings

import "github.com/yajur-khanna/asm-tool/internal/stage"

// Slot names one stage output. The string value is the report key.
type Slot string

const (
	SlotSubdomains     Slot = "subdomains"
	SlotLiveSubdomains Slot = "live_subdomains"
	SlotDNSRecords     Slot = "dns_records"
	SlotWhois          Slot = "whois"
	SlotOpenPorts      Slot = "open_ports"
	SlotTechnologies   Slot = "technologies"
	SlotSSLAnalysis    Slot = "ssl_analysis"
	SlotHeaders        Slot = "headers"
	SlotBreaches       Slot = "breaches"
)

// Slots lists every stage slot in report order.
var Slots = []Slot{
	SlotSubdomains,
	SlotLiveSubdomains,
	SlotDNSRecords,
	SlotWhois,
	SlotOpenPorts,
	SlotTechnologies,
	SlotSSLAnalysis,
	SlotHeaders,
	SlotBreaches,
}

// DNSRecordTypes are always present in DNSRecords, possibly with no values.
var DNSRecordTypes = []string{"A", "AAAA", "MX", "TXT", "NS"}

// SecurityHeaders is the fixed set audited on every domain.
var SecurityHeaders = []string{
	"Strict-Transport-Security",
	"X-Frame-Options",
	"Content-Security-Policy",
	"X-Content-Type-Options",
	"Referrer-Policy",
}

// DNSRecords maps a record type to its values.
type DNSRecords map[string][]string

// Whois is the registration summary. Every field is optional; a failed lookup is the zero value.
type Whois struct {
	Registrar      string   `json:"registrar,omitempty" yaml:"registrar,omitempty"`
	CreationDate   string   `json:"creation_date,omitempty" yaml:"creation_date,omitempty"`
	ExpirationDate string   `json:"expiration_date,omitempty" yaml:"expiration_date,omitempty"`
	NameServers    []string `json:"name_servers,omitempty" yaml:"name_servers,omitempty"`
}

type OpenPort struct {
	Port    int    `json:"port" yaml:"port"`
	State   string `json:"state" yaml:"state"`
	Service string `json:"service" yaml:"service"`
	Version string `json:"version" yaml:"version"`
}

// Headers maps each security header to its observed value, nil when absent.
type Headers map[string]*string

// TLSReport is the opaque payload produced by the TLS analysis stage.
type TLSReport map[string]any

// Breach is one opaque record from the breach-lookup service.
type Breach map[string]any

// Findings is the immutable per-domain record. Build it with Aggregate only;
// every container is non-nil and owned exclusively by the record.
type Findings struct {
	Domain         string
	Subdomains     []string
	LiveSubdomains []string
	DNSRecords     DNSRecords
	Whois          Whois
	OpenPorts      []OpenPort
	Technologies   []string
	SSLAnalysis    TLSReport
	Headers        Headers
	Breaches       []Breach

	// StageStatus tells a stage that found nothing apart from one that could not run.
	// It is kept out of the score and the report.
	StageStatus map[Slot]stage.Status
}

// Outputs carries one result per slot into Aggregate. A nil field means the
// stage never ran, which Aggregate rejects with a SchemaError.
type Outputs struct {
	Subdomains     *stage.Result[[]string]
	LiveSubdomains *stage.Result[[]string]
	DNSRecords     *stage.Result[DNSRecords]
	Whois          *stage.Result[Whois]
	OpenPorts      *stage.Result[[]OpenPort]
	Technologies   *stage.Result[[]string]
	SSLAnalysis    *stage.Result[TLSReport]
	Headers        *stage.Result[Headers]
	Breaches       *stage.Result[[]Breach]
}

// Empty values declared by each stage.

func EmptyStrings() []string { return []string{} }
func EmptyDNSRecords() DNSRecords { return normaliseDNS(nil) }
func EmptyWhois() Whois { return Whois{} }
func EmptyOpenPorts() []OpenPort { return []OpenPort{} }
func EmptyTLSReport() TLSReport { return TLSReport{} }
func EmptyHeaders() Headers { return normaliseHeaders(nil) }
func EmptyBreaches() []Breach { return []Breach{} }
