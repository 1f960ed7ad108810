package config

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Subdomains SubdomainsConfig `mapstructure:"subdomains"`
	Liveness   LivenessConfig   `mapstructure:"liveness"`
	DNS        DNSConfig        `mapstructure:"dns"`
	Whois      WhoisConfig      `mapstructure:"whois"`
	Nmap       NmapConfig       `mapstructure:"nmap"`
	Tech       TechConfig       `mapstructure:"tech"`
	TLS        TLSConfig        `mapstructure:"tls"`
	Headers    HeadersConfig    `mapstructure:"headers"`
	Breach     BreachConfig     `mapstructure:"breach"`
	Summary    SummaryConfig    `mapstructure:"summary"`
	Report     ReportConfig     `mapstructure:"report"`
	Input      InputConfig      `mapstructure:"input"`
	Server     ServerConfig     `mapstructure:"server"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	ExporterType string  `mapstructure:"exporter_type"`
	Endpoint     string  `mapstructure:"endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// PipelineConfig bounds the domain worker pool.
type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type HTTPConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	// BlockPrivate refuses connections to loopback, link-local and RFC1918 addresses.
	BlockPrivate bool `mapstructure:"block_private"`
}

type SubdomainsConfig struct {
	AmassPath     string        `mapstructure:"amass_path"`
	SubfinderPath string        `mapstructure:"subfinder_path"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LivenessConfig bounds the probe of each host. Timeout is the floor of the whole
// stage; Budget raises it for long host lists.
type LivenessConfig struct {
	HostTimeout time.Duration `mapstructure:"host_timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Budget returns the time needed to probe n hosts when every probe runs to its host
// timeout over both schemes, or Timeout if that is longer. Zero means unbounded.
func (c LivenessConfig) Budget(n int) time.Duration {
	conc := c.Concurrency
	if conc < 1 {
		conc = 1
	}
	waves := (n + conc - 1) / conc
	need := 2 * c.HostTimeout * time.Duration(waves)
	if c.Timeout > need {
		return c.Timeout
	}
	return need
}

type DNSConfig struct {
	Resolvers    []string      `mapstructure:"resolvers"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type WhoisConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type NmapConfig struct {
	BinaryPath  string        `mapstructure:"binary_path"`
	Timing      int           `mapstructure:"timing"`
	FastMode    bool          `mapstructure:"fast_mode"`
	ServiceInfo bool          `mapstructure:"service_info"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type TechConfig struct {
	Favicon bool          `mapstructure:"favicon"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TLSConfig struct {
	Port             int           `mapstructure:"port"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	CheckRevocation  bool          `mapstructure:"check_revocation"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type HeadersConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type BreachConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SummaryConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Provider         string        `mapstructure:"provider"`
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	AzureEndpoint    string        `mapstructure:"azure_endpoint"`
	AzureDeployment  string        `mapstructure:"azure_deployment"`
	Model            string        `mapstructure:"model"`
	Temperature      float32       `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MissingDelimiter string        `mapstructure:"missing_delimiter"`
}

type ReportConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

type InputConfig struct {
	CSV string `mapstructure:"csv"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// APIKey, when set, is required as a bearer token on /api/v1.
	APIKey    string          `mapstructure:"api_key"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// Default returns the configuration used when no flag, env var or file overrides a key.
// cmd/root.go unmarshals the layered viper settings over it.
func Default() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "asm-tool",
			ExporterType: "otlp",
			Endpoint:     "localhost:4318",
			SampleRate:   1.0,
		},
		Pipeline: PipelineConfig{
			Concurrency: 1,
		},
		HTTP: HTTPConfig{
			UserAgent:    "asm-tool/1.0",
			BlockPrivate: true,
		},
		Subdomains: SubdomainsConfig{
			AmassPath:     "amass",
			SubfinderPath: "subfinder",
			Timeout:       10 * time.Minute,
		},
		Liveness: LivenessConfig{
			HostTimeout: 5 * time.Second,
			Concurrency: 10,
			Timeout:     2 * time.Minute,
		},
		DNS: DNSConfig{
			Resolvers:    []string{"8.8.8.8:53", "1.1.1.1:53"},
			QueryTimeout: 5 * time.Second,
			Timeout:      30 * time.Second,
		},
		Whois: WhoisConfig{
			Timeout: 30 * time.Second,
		},
		Nmap: NmapConfig{
			BinaryPath:  "nmap",
			Timing:      4,
			FastMode:    true,
			ServiceInfo: true,
			Timeout:     10 * time.Minute,
		},
		Tech: TechConfig{
			Favicon: true,
			Timeout: 10 * time.Second,
		},
		TLS: TLSConfig{
			Port:             443,
			HandshakeTimeout: 5 * time.Second,
			CheckRevocation:  true,
			Timeout:          60 * time.Second,
		},
		Headers: HeadersConfig{
			Timeout: 5 * time.Second,
		},
		Breach: BreachConfig{
			BaseURL: "https://haveibeenpwned.com/api/v3",
			Timeout: 10 * time.Second,
		},
		Summary: SummaryConfig{
			Enabled:          true,
			Provider:         "openai",
			Model:            "gpt-3.5-turbo",
			Temperature:      0.7,
			MaxTokens:        300,
			Timeout:          60 * time.Second,
			MissingDelimiter: "narrative",
		},
		Report: ReportConfig{
			Dir:    "reports",
			Format: "json",
		},
		Input: InputConfig{
			CSV: "input.csv",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Logger.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format: unknown format %q", c.Logger.Format))
	}

	if c.Pipeline.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("pipeline.concurrency must be >= 1, got %d", c.Pipeline.Concurrency))
	}
	if c.Liveness.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("liveness.concurrency must be >= 1, got %d", c.Liveness.Concurrency))
	}

	timeouts := map[string]time.Duration{
		"subdomains.timeout":    c.Subdomains.Timeout,
		"liveness.host_timeout": c.Liveness.HostTimeout,
		"liveness.timeout":      c.Liveness.Timeout,
		"dns.query_timeout":     c.DNS.QueryTimeout,
		"dns.timeout":           c.DNS.Timeout,
		"whois.timeout":         c.Whois.Timeout,
		"nmap.timeout":          c.Nmap.Timeout,
		"tech.timeout":          c.Tech.Timeout,
		"tls.handshake_timeout": c.TLS.HandshakeTimeout,
		"tls.timeout":           c.TLS.Timeout,
		"headers.timeout":       c.Headers.Timeout,
		"breach.timeout":        c.Breach.Timeout,
		"summary.timeout":       c.Summary.Timeout,
	}
	for _, key := range sortedKeys(timeouts) {
		if timeouts[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, timeouts[key]))
		}
	}

	if c.Nmap.Timing < 0 || c.Nmap.Timing > 5 {
		errs = append(errs, fmt.Errorf("nmap.timing must be between 0 and 5, got %d", c.Nmap.Timing))
	}
	if c.TLS.Port < 1 || c.TLS.Port > 65535 {
		errs = append(errs, fmt.Errorf("tls.port out of range: %d", c.TLS.Port))
	}

	switch c.Summary.MissingDelimiter {
	case "narrative", "empty":
	default:
		errs = append(errs, fmt.Errorf("summary.missing_delimiter must be \"narrative\" or \"empty\", got %q", c.Summary.MissingDelimiter))
	}
	switch c.Summary.Provider {
	case "openai", "azure":
	default:
		errs = append(errs, fmt.Errorf("summary.provider must be \"openai\" or \"azure\", got %q", c.Summary.Provider))
	}

	switch c.Report.Format {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("report.format must be \"json\" or \"yaml\", got %q", c.Report.Format))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.RateLimit.RequestsPerSecond <= 0 || c.Server.RateLimit.BurstSize < 1 {
		errs = append(errs, errors.New("server.rate_limit requires positive requests_per_second and burst_size"))
	}

	if c.Report.Dir == "" {
		errs = append(errs, errors.New("report.dir must not be empty"))
	}

	return errors.Join(errs...)
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
