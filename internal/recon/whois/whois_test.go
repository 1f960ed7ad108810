package whois

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
)

const verisignResponse = `   Domain Name: EXAMPLE.COM
   Registry Domain ID: 2336799_DOMAIN_COM-VRSN
   Registrar WHOIS Server: whois.iana.org
   Updated Date: 2024-08-14T07:01:34Z
   Creation Date: 1995-08-14T04:00:00Z
   Registry Expiry Date: 2025-08-13T04:00:00Z
   Registrar: RESERVED-Internet Assigned Numbers Authority
   Registrar IANA ID: 376
   Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
   Name Server: A.IANA-SERVERS.NET
   Name Server: B.IANA-SERVERS.NET
   DNSSEC: signedDelegation
>>> Last update of whois database: 2024-09-01T00:00:00Z <<<
`

const registryStyleResponse = `% Registry style output
nserver:      ns1.example.de
nserver:      ns2.example.de 192.0.2.1
created:      2001-01-01
Registrar:    Example Registrar GmbH
`

func fakeClient(raw string, err error) *Client {
	c := New(config.Default().Whois, nil)
	c.query = func(ctx context.Context, domain string) (string, error) {
		return raw, err
	}
	return c
}

func TestLookupStructured(t *testing.T) {
	got, err := fakeClient(verisignResponse, nil).Lookup(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Equal(t, "RESERVED-Internet Assigned Numbers Authority", got.Registrar)
	assert.Contains(t, got.CreationDate, "1995-08-14")
	assert.Contains(t, got.ExpirationDate, "2025-08-13")
	assert.Equal(t, []string{"a.iana-servers.net", "b.iana-servers.net"}, got.NameServers)
}

func TestParseManualFallback(t *testing.T) {
	got := parseManual(registryStyleResponse)

	assert.Equal(t, findings.Whois{
		Registrar:    "Example Registrar GmbH",
		CreationDate: "2001-01-01",
		NameServers:  []string{"ns1.example.de", "ns2.example.de"},
	}, got)
}

func TestLookupQueryError(t *testing.T) {
	boom := errors.New("connection refused")
	got, err := fakeClient("", boom).Lookup(context.Background(), "example.com")

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, findings.Whois{}, got)
}

func TestParseGarbageIsEmpty(t *testing.T) {
	got, _ := fakeClient("", nil).Parse("example.com", "nothing useful here\n")
	assert.Equal(t, findings.Whois{}, got)
}

func TestParseManualNothingFound(t *testing.T) {
	assert.Equal(t, findings.Whois{}, parseManual("% comment only\n\n"))
}
