package findings

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yajur-khanna/asm-tool/internal/stage"
)

func ptr[T any](v T) *T { return &v }

func strPtr(s string) *string { return &s }

func populatedOutputs() Outputs {
	return Outputs{
		Subdomains:     ptr(stage.Ok([]string{"www.example.com", "api.example.com"})),
		LiveSubdomains: ptr(stage.Ok([]string{"www.example.com"})),
		DNSRecords:     ptr(stage.Ok(DNSRecords{"A": {"93.184.216.34"}, "mx": {"10 mail.example.com."}})),
		Whois: ptr(stage.Ok(Whois{
			Registrar:   "RESERVED-Internet Assigned Numbers Authority",
			NameServers: []string{"a.iana-servers.net"},
		})),
		OpenPorts:    ptr(stage.Ok([]OpenPort{{Port: 443, State: "open", Service: "https", Version: "nginx"}})),
		Technologies: ptr(stage.Ok([]string{"Nginx", "React", "Nginx", " "})),
		SSLAnalysis:  ptr(stage.Ok(TLSReport{"protocols": map[string]any{"TLS1.3": true}})),
		Headers:      ptr(stage.Ok(Headers{"Strict-Transport-Security": strPtr("max-age=63072000")})),
		Breaches:     ptr(stage.Ok([]Breach{{"Name": "Adobe", "PwnCount": 152445165}})),
	}
}

func unavailableOutputs() Outputs {
	boom := errors.New("tool missing")
	return Outputs{
		Subdomains:     ptr(stage.Unavailable(EmptyStrings(), boom)),
		LiveSubdomains: ptr(stage.Unavailable(EmptyStrings(), boom)),
		DNSRecords:     ptr(stage.Unavailable(EmptyDNSRecords(), boom)),
		Whois:          ptr(stage.Unavailable(EmptyWhois(), boom)),
		OpenPorts:      ptr(stage.Unavailable(EmptyOpenPorts(), boom)),
		Technologies:   ptr(stage.Unavailable(EmptyStrings(), boom)),
		SSLAnalysis:    ptr(stage.Unavailable(EmptyTLSReport(), boom)),
		Headers:        ptr(stage.Unavailable(EmptyHeaders(), boom)),
		Breaches:       ptr(stage.Unavailable(EmptyBreaches(), boom)),
	}
}

func TestAggregatePopulated(t *testing.T) {
	f, err := Aggregate("example.com", populatedOutputs())
	require.NoError(t, err)

	assert.Equal(t, "example.com", f.Domain)
	assert.Equal(t, []string{"www.example.com", "api.example.com"}, f.Subdomains)
	assert.Equal(t, []string{"www.example.com"}, f.LiveSubdomains)
	assert.Equal(t, []string{"Nginx", "React"}, f.Technologies)
	assert.Equal(t, []string{"10 mail.example.com."}, f.DNSRecords["MX"])
	assert.Len(t, f.OpenPorts, 1)
	assert.Len(t, f.Breaches, 1)
	assert.Empty(t, f.Unavailable())

	for _, rt := range DNSRecordTypes {
		assert.Contains(t, f.DNSRecords, rt)
		assert.NotNil(t, f.DNSRecords[rt])
	}

	require.Len(t, f.Headers, len(SecurityHeaders))
	require.NotNil(t, f.Headers["Strict-Transport-Security"])
	assert.Equal(t, "max-age=63072000", *f.Headers["Strict-Transport-Security"])
	assert.Nil(t, f.Headers["X-Frame-Options"])
}

func TestAggregateAllUnavailableIsComplete(t *testing.T) {
	f, err := Aggregate("example.com", unavailableOutputs())
	require.NoError(t, err)

	assert.NotNil(t, f.Subdomains)
	assert.Empty(t, f.Subdomains)
	assert.NotNil(t, f.LiveSubdomains)
	assert.NotNil(t, f.OpenPorts)
	assert.NotNil(t, f.Technologies)
	assert.NotNil(t, f.SSLAnalysis)
	assert.NotNil(t, f.Breaches)
	assert.Len(t, f.DNSRecords, len(DNSRecordTypes))
	assert.Len(t, f.Headers, len(SecurityHeaders))
	assert.Equal(t, Whois{}, f.Whois)
	assert.Equal(t, Slots, f.Unavailable())
}

func TestAggregateNormalisesNilPayloads(t *testing.T) {
	out := Outputs{
		Subdomains:     ptr(stage.Ok[[]string](nil)),
		LiveSubdomains: ptr(stage.Ok[[]string](nil)),
		DNSRecords:     ptr(stage.Ok[DNSRecords](nil)),
		Whois:          ptr(stage.Ok(Whois{})),
		OpenPorts:      ptr(stage.Ok[[]OpenPort](nil)),
		Technologies:   ptr(stage.Ok[[]string](nil)),
		SSLAnalysis:    ptr(stage.Ok[TLSReport](nil)),
		Headers:        ptr(stage.Ok[Headers](nil)),
		Breaches:       ptr(stage.Ok[[]Breach](nil)),
	}

	f, err := Aggregate("example.com", out)
	require.NoError(t, err)

	assert.NotNil(t, f.Subdomains)
	assert.NotNil(t, f.OpenPorts)
	assert.NotNil(t, f.SSLAnalysis)
	assert.NotNil(t, f.Breaches)
	assert.Len(t, f.Headers, len(SecurityHeaders))
}

func TestAggregateMissingSlots(t *testing.T) {
	out := populatedOutputs()
	out.Whois = nil
	out.Breaches = nil

	_, err := Aggregate("example.com", out)
	require.Error(t, err)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "example.com", schemaErr.Domain)
	assert.Equal(t, []Slot{SlotWhois, SlotBreaches}, schemaErr.Missing)
	assert.Contains(t, err.Error(), "whois, breaches")
}

func TestAggregateIsIdempotent(t *testing.T) {
	out := populatedOutputs()

	first, err := Aggregate("example.com", out)
	require.NoError(t, err)
	second, err := Aggregate("example.com", out)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAggregateSharesNoMemoryWithInputs(t *testing.T) {
	subs := []string{"www.example.com"}
	tlsReport := TLSReport{"certificate": map[string]any{"issuer": "R3"}}
	hsts := "max-age=1"

	out := populatedOutputs()
	out.Subdomains = ptr(stage.Ok(subs))
	out.SSLAnalysis = ptr(stage.Ok(tlsReport))
	out.Headers = ptr(stage.Ok(Headers{"Strict-Transport-Security": &hsts}))

	f, err := Aggregate("example.com", out)
	require.NoError(t, err)

	subs[0] = "mutated.example.com"
	tlsReport["certificate"].(map[string]any)["issuer"] = "mutated"
	hsts = "mutated"

	assert.Equal(t, "www.example.com", f.Subdomains[0])
	assert.Equal(t, "R3", f.SSLAnalysis["certificate"].(map[string]any)["issuer"])
	assert.Equal(t, "max-age=1", *f.Headers["Strict-Transport-Security"])
}

func TestFindingsJSONKeys(t *testing.T) {
	f, err := Aggregate("example.com", unavailableOutputs())
	require.NoError(t, err)

	raw, err := json.Marshal(f)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Len(t, doc, len(Slots))
	for _, s := range Slots {
		assert.Contains(t, doc, string(s))
	}
	assert.Equal(t, []any{}, doc["subdomains"])
	assert.Equal(t, map[string]any{}, doc["whois"])
}
