// Package dnsx resolves mail-exchange candidates for a domain. It wraps
// raw DNS queries (github.com/miekg/dns) so the rest of the library only
// consumes an ordered candidate list and a small error taxonomy.
package dnsx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/mailprobe/mailprobe/types"
)

// Lookup failures collapse into three cases the caller can act on.
var (
	// ErrNotFound means the domain (or the queried record) does not
	// exist: NXDOMAIN, or an empty answer with no fallback.
	ErrNotFound = errors.New("dnsx: no such record")
	// ErrTimeout means no nameserver answered within the deadline.
	ErrTimeout = errors.New("dnsx: query timed out")
	// ErrServFail covers SERVFAIL, REFUSED and other server-side failures.
	ErrServFail = errors.New("dnsx: server failure")
)

// IsNotFound reports whether err is a definitive "does not exist" answer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Config configures the resolver.
type Config struct {
	// Nameservers to query, e.g. "8.8.8.8:53". If empty, the servers
	// from /etc/resolv.conf are used, falling back to public DNS.
	Nameservers []string

	// Timeout per DNS query. Default: 5s.
	Timeout time.Duration

	// Retries is the number of extra passes over the nameserver list
	// for failed queries. Default: 2.
	Retries int

	// FallbackToA, when true, synthesizes a single implicit MX record
	// for the bare domain when it has no MX but does have an A/AAAA
	// record (the RFC 5321 implicit-MX convention). Default behavior of
	// the library is to enable this.
	FallbackToA bool
}

// Resolver resolves MX candidates using raw DNS queries.
type Resolver struct {
	cfg    Config
	client *mdns.Client
	// exchange is injectable for tests.
	exchange func(ctx context.Context, m *mdns.Msg, server string) (*mdns.Msg, error)
}

// NewResolver creates a resolver with the given configuration.
func NewResolver(cfg Config) *Resolver {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 2
	}
	if len(cfg.Nameservers) == 0 {
		cfg.Nameservers = systemNameservers()
	}
	client := &mdns.Client{Timeout: cfg.Timeout}
	return &Resolver{
		cfg:    cfg,
		client: client,
		exchange: func(ctx context.Context, m *mdns.Msg, server string) (*mdns.Msg, error) {
			resp, _, err := client.ExchangeContext(ctx, m, server)
			return resp, err
		},
	}
}

// NewResolverWithExchange overrides the wire exchange function (for tests).
func NewResolverWithExchange(cfg Config, fn func(ctx context.Context, m *mdns.Msg, server string) (*mdns.Msg, error)) *Resolver {
	r := NewResolver(cfg)
	r.exchange = fn
	return r
}

// systemNameservers reads /etc/resolv.conf, falling back to public DNS.
func systemNameservers() []string {
	conf, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		if !strings.Contains(s, ":") {
			s += ":" + conf.Port
		}
		servers = append(servers, s)
	}
	return servers
}

// LookupMX returns the MX candidates for domain, ordered by preference
// ascending with ties kept in resolver order. When the domain has no MX
// records and FallbackToA is set, a single implicit candidate naming the
// domain itself is returned, provided the domain resolves to an address.
func (r *Resolver) LookupMX(ctx context.Context, domain string) ([]types.MXRecord, error) {
	resp, err := r.query(ctx, domain, mdns.TypeMX)

	var records []types.MXRecord
	if err == nil {
		for _, rr := range resp.Answer {
			mx, ok := rr.(*mdns.MX)
			if !ok {
				continue
			}
			records = append(records, types.MXRecord{
				Host: strings.TrimSuffix(mx.Mx, "."),
				Pref: mx.Preference,
				TTL:  mx.Hdr.Ttl,
			})
		}
	} else if !IsNotFound(err) {
		return nil, err
	}

	if len(records) == 0 {
		if !r.cfg.FallbackToA {
			return nil, ErrNotFound
		}
		return r.implicitMX(ctx, domain)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Pref < records[j].Pref
	})
	return records, nil
}

// implicitMX checks for an A/AAAA record on the bare domain and, when one
// exists, synthesizes the implicit MX candidate.
func (r *Resolver) implicitMX(ctx context.Context, domain string) ([]types.MXRecord, error) {
	for _, qtype := range []uint16{mdns.TypeA, mdns.TypeAAAA} {
		resp, err := r.query(ctx, domain, qtype)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, rr := range resp.Answer {
			switch a := rr.(type) {
			case *mdns.A:
				return []types.MXRecord{{Host: domain, Pref: 0, TTL: a.Hdr.Ttl}}, nil
			case *mdns.AAAA:
				return []types.MXRecord{{Host: domain, Pref: 0, TTL: a.Hdr.Ttl}}, nil
			}
		}
	}
	return nil, ErrNotFound
}

// query performs one DNS question with retries across the nameservers.
func (r *Resolver) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), qtype)
	m.RecursionDesired = true

	var lastErr error
	for i := 0; i <= r.cfg.Retries; i++ {
		for _, server := range r.cfg.Nameservers {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			default:
			}

			resp, err := r.exchange(ctx, m, server)
			if err != nil {
				lastErr = classifyExchangeErr(err)
				continue
			}

			switch resp.Rcode {
			case mdns.RcodeSuccess:
				return resp, nil
			case mdns.RcodeNameError: // NXDOMAIN
				return nil, ErrNotFound
			case mdns.RcodeServerFailure, mdns.RcodeRefused:
				lastErr = fmt.Errorf("%w: rcode %s from %s", ErrServFail, mdns.RcodeToString[resp.Rcode], server)
				continue
			default:
				lastErr = fmt.Errorf("%w: unexpected rcode %d", ErrServFail, resp.Rcode)
				continue
			}
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrServFail
}

func classifyExchangeErr(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrServFail, err)
}
