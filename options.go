package mailprobe

import "time"

// DNSOptions configures the DNS validation level (and the MX lookups the
// SMTP level shares).
type DNSOptions struct {
	// Timeout is the maximum time for one MX lookup. Default: 5s
	Timeout time.Duration
	// Nameservers to query, e.g. "8.8.8.8:53". Default: the system
	// resolvers from /etc/resolv.conf.
	Nameservers []string
	// StrictMX requires explicit MX records. By default, a domain with
	// no MX but an A/AAAA record gets a synthesized implicit MX
	// candidate, per SMTP convention.
	StrictMX bool
	// CacheTTL is how long MX answers are cached. Default: 5m
	CacheTTL time.Duration
}

func defaultDNSOptions() DNSOptions {
	return DNSOptions{
		Timeout:  5 * time.Second,
		CacheTTL: 5 * time.Minute,
	}
}

// DomainOptions configures the domain-level validation.
type DomainOptions struct {
	// AllowedDomains, when non-empty, restricts validation to these
	// domains. Default: empty (all domains allowed).
	AllowedDomains []string
	// CheckDisposable when true fails on known disposable domains. Default: true
	CheckDisposable bool
	// CheckTypos when true suggests corrections for close-match domains. Default: true
	// This never fails an email, only provides a suggestion (Suggestion field).
	CheckTypos bool
	// TypoThreshold is the Levenshtein distance threshold for typo detection. Default: 2
	TypoThreshold int
}

func defaultDomainOptions() DomainOptions {
	return DomainOptions{
		CheckDisposable: true,
		CheckTypos:      true,
		TypoThreshold:   2,
	}
}

// SMTPOptions configures the SMTP probe level.
type SMTPOptions struct {
	// HeloDomain is the domain sent in the EHLO command. Required, e.g. "myapp.com"
	HeloDomain string
	// MailFrom is the address sent in the MAIL FROM command. Required, e.g. "verify@myapp.com"
	MailFrom string
	// ConnectTimeout is the maximum time for the TCP connection. Default: 5s
	ConnectTimeout time.Duration
	// CommandTimeout is the maximum response time per SMTP command. Default: 10s
	CommandTimeout time.Duration
	// MaxMXAttempts is how many MX hosts to try sequentially. Default: 2
	MaxMXAttempts int
	// Port is the SMTP port. Default: 25
	Port string
	// DetectCatchAll probes a random recipient after an accepted one to
	// detect servers that accept everything. Default: false
	DetectCatchAll bool
	// DisableRateLimit turns off the built-in probe throttling
	// (global and per-domain token buckets). Default: false
	DisableRateLimit bool
	// ProxyAddress optionally routes probes through a SOCKS5 proxy
	// ("host:port"). There is no fallback: if the proxy is unreachable,
	// probes fail.
	ProxyAddress  string
	ProxyUsername string
	ProxyPassword string
}

func defaultSMTPOptions() SMTPOptions {
	return SMTPOptions{
		ConnectTimeout: 5 * time.Second,
		CommandTimeout: 10 * time.Second,
		MaxMXAttempts:  2,
		Port:           "25",
	}
}
