package amassgraph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Triple
		ok   bool
	}{
		{
			line: "example.com (FQDN) --> a_record --> 23.192.228.80 (IPAddress)",
			want: Triple{Subject: "example.com", SubjectType: "FQDN", Predicate: "a_record", Object: "23.192.228.80", ObjectType: "IPAddress"},
			ok:   true,
		},
		{
			line: "  www.example.com (FQDN)-->cname_record-->  example.com (FQDN)  ",
			want: Triple{Subject: "www.example.com", SubjectType: "FQDN", Predicate: "cname_record", Object: "example.com", ObjectType: "FQDN"},
			ok:   true,
		},
		{
			line: "example.com --> ns_record --> a.iana-servers.net",
			want: Triple{Subject: "example.com", Predicate: "ns_record", Object: "a.iana-servers.net"},
			ok:   true,
		},
		{line: "www.example.com", ok: false},
		{line: "example.com (FQDN) --> a_record", ok: false},
		{line: " --> x --> y", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"example.com (FQDN) --> a_record --> 23.192.228.80 (IPAddress)",
		"www.example.com (FQDN) --> cname_record --> example.com (FQDN)",
		"",
		"23.192.228.80 (IPAddress) --> contains --> 23.192.0.0/11 (Netblock)",
		"[Banner] amass v4 starting",
		"example.com (FQDN) --> a_record --> 23.192.228.80 (IPAddress)",
	}, "\n")

	g, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 1, g.Skipped)
	assert.Len(t, g.Edges, 4)
	assert.Equal(t, []Node{
		{Name: "example.com", Type: "FQDN"},
		{Name: "23.192.228.80", Type: "IPAddress"},
		{Name: "www.example.com", Type: "FQDN"},
		{Name: "23.192.0.0/11", Type: "Netblock"},
	}, g.Nodes)
	assert.Equal(t, []string{"example.com", "www.example.com"}, g.FQDNs())
}

func TestParseEmpty(t *testing.T) {
	g, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Edges)
	assert.Zero(t, g.Skipped)
}
