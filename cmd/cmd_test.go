package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/logger"
	"github.com/yajur-khanna/asm-tool/internal/recon/amassgraph"
)

func setupGlobals(t *testing.T) {
	t.Helper()
	cfg = config.Default()
	log = logger.NewNop()
}

func TestLoadDomainsFromArgs(t *testing.T) {
	setupGlobals(t)

	domains, err := loadDomains([]string{
		"Example.com",
		"https://www.example.org/login",
		"not a domain",
		"example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "www.example.org"}, domains)
}

func TestLoadDomainsFromCSV(t *testing.T) {
	setupGlobals(t)

	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("owner,domain\nops,example.com\nsec,example.net\n"), 0o644))
	cfg.Input.CSV = path

	domains, err := loadDomains(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "example.net"}, domains)
}

func TestLoadDomainsNoneValid(t *testing.T) {
	setupGlobals(t)

	_, err := loadDomains([]string{"localhost", "10.0.0.1"})
	assert.ErrorIs(t, err, errNoDomains)
}

func TestLoadDomainsMissingCSV(t *testing.T) {
	setupGlobals(t)
	cfg.Input.CSV = filepath.Join(t.TempDir(), "missing.csv")

	_, err := loadDomains(nil)
	assert.Error(t, err)
}

func TestGraphCommandWritesJSON(t *testing.T) {
	setupGlobals(t)

	dir := t.TempDir()
	in := filepath.Join(dir, "amass.txt")
	out := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(in, []byte(
		"www.example.com (FQDN) --> a_record --> 93.184.216.34 (IPAddress)\n"+
			"example.com (FQDN) --> ns_record --> a.iana-servers.net (FQDN)\n"+
			"garbage line\n"), 0o644))

	graphOut = out
	t.Cleanup(func() { graphOut = "" })

	require.NoError(t, graphCmd.RunE(graphCmd, []string{in}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var g amassgraph.Graph
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Len(t, g.Nodes, 4)
	assert.Len(t, g.Edges, 2)
	assert.Equal(t, 1, g.Skipped)
}

func TestGraphCommandMissingFile(t *testing.T) {
	setupGlobals(t)
	assert.Error(t, graphCmd.RunE(graphCmd, []string{filepath.Join(t.TempDir(), "nope.txt")}))
}

func TestInitConfigReadsEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("HAVEIBEENPWNED_API_KEY", "hibp-test")
	t.Setenv("ASM_PIPELINE_CONCURRENCY", "3")
	t.Setenv("ASM_WHOIS_TIMEOUT", "45s")
	t.Setenv("ASM_REPORT_FORMAT", "yaml")

	require.NoError(t, initConfig())

	assert.Equal(t, "sk-test", cfg.Summary.APIKey)
	assert.Equal(t, "hibp-test", cfg.Breach.APIKey)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.Whois.Timeout)
	assert.Equal(t, "yaml", cfg.Report.Format)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Summary.Model)
}

func TestInitConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("ASM_REPORT_FORMAT", "xml")

	err := initConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report.format")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, buf.String(), "asm "+version)
}
