package mailprobe

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvOptions bundles the option structs populated from the environment.
type EnvOptions struct {
	DNS    DNSOptions
	Domain DomainOptions
	SMTP   SMTPOptions
}

// LoadEnv reads configuration from the environment, after loading an
// optional .env file from the working directory. Unset variables keep
// their defaults. Recognized variables:
//
//	MAILPROBE_HELO_DOMAIN      EHLO domain
//	MAILPROBE_MAIL_FROM        envelope sender for probes
//	MAILPROBE_SMTP_TIMEOUT     per-command timeout, seconds (float)
//	MAILPROBE_CONNECT_TIMEOUT  dial timeout, seconds (float)
//	MAILPROBE_DNS_TIMEOUT      MX lookup timeout, seconds (float)
//	MAILPROBE_MAX_MX_ATTEMPTS  MX hosts to try per address
//	MAILPROBE_SMTP_PORT        SMTP port
//	MAILPROBE_PROXY            SOCKS5 proxy address (host:port)
//	MAILPROBE_PROXY_USER       proxy username
//	MAILPROBE_PROXY_PASS       proxy password
//	ALLOWED_EMAIL_DOMAINS      CSV domain allowlist for the domain level
func LoadEnv() (EnvOptions, error) {
	// A missing .env file is fine; explicit environment still applies.
	_ = godotenv.Load()

	opts := EnvOptions{
		DNS:    defaultDNSOptions(),
		Domain: defaultDomainOptions(),
		SMTP:   defaultSMTPOptions(),
	}

	opts.SMTP.HeloDomain = os.Getenv("MAILPROBE_HELO_DOMAIN")
	opts.SMTP.MailFrom = os.Getenv("MAILPROBE_MAIL_FROM")
	opts.SMTP.ProxyAddress = os.Getenv("MAILPROBE_PROXY")
	opts.SMTP.ProxyUsername = os.Getenv("MAILPROBE_PROXY_USER")
	opts.SMTP.ProxyPassword = os.Getenv("MAILPROBE_PROXY_PASS")

	if port := os.Getenv("MAILPROBE_SMTP_PORT"); port != "" {
		opts.SMTP.Port = port
	}

	var err error
	if opts.SMTP.CommandTimeout, err = envSeconds("MAILPROBE_SMTP_TIMEOUT", opts.SMTP.CommandTimeout); err != nil {
		return EnvOptions{}, err
	}
	if opts.SMTP.ConnectTimeout, err = envSeconds("MAILPROBE_CONNECT_TIMEOUT", opts.SMTP.ConnectTimeout); err != nil {
		return EnvOptions{}, err
	}
	if opts.DNS.Timeout, err = envSeconds("MAILPROBE_DNS_TIMEOUT", opts.DNS.Timeout); err != nil {
		return EnvOptions{}, err
	}

	if raw := os.Getenv("MAILPROBE_MAX_MX_ATTEMPTS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return EnvOptions{}, fmt.Errorf("mailprobe: invalid MAILPROBE_MAX_MX_ATTEMPTS %q", raw)
		}
		opts.SMTP.MaxMXAttempts = n
	}

	if raw := os.Getenv("ALLOWED_EMAIL_DOMAINS"); raw != "" {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				opts.Domain.AllowedDomains = append(opts.Domain.AllowedDomains, d)
			}
		}
	}

	return opts, nil
}

// envSeconds parses a float seconds value, keeping def when unset.
func envSeconds(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("mailprobe: invalid %s %q", key, raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
