package v2ray

import (
	"errors"
	"fmt"

	"github.com/ramohamadh/V2rayClient/internal/v2ray/parser"
)

// ErrValidationFailure marks a document that is not runnable.
var ErrValidationFailure = errors.New("config validation failure")

const proxyTag = "proxy"

// builtinGeoRules are the direct-routing entries that domain rewrites
// must never remove.
var builtinGeoRules = map[string]bool{
	"geoip:private":             true,
	"geoip:cn":                  true,
	"geosite:cn":                true,
	"geosite:category-games@cn": true,
}

// SetOutbound installs ob as the active proxy. Any previous proxy entry
// is dropped, other outbounds keep their order, and the new entry sits
// at index 0.
func (c *Config) SetOutbound(ob Outbound) {
	ob.Tag = proxyTag

	kept := make([]Outbound, 0, len(c.Outbounds)+1)
	kept = append(kept, ob)
	for _, existing := range c.Outbounds {
		if existing.Tag != proxyTag {
			kept = append(kept, existing)
		}
	}
	c.Outbounds = kept
}

// RebuildProxyRouting replaces the rule table with the standard split:
// private and domestic ranges go direct, ads are blocked, and everything
// else rides the proxy. The catch-all stays last.
func (c *Config) RebuildProxyRouting() {
	if c.Routing == nil {
		c.Routing = &Routing{DomainStrategy: "IPIfNonMatch"}
	}
	c.Routing.Rules = []RoutingRule{
		{Type: "field", IP: []string{"geoip:private"}, OutboundTag: "direct"},
		{Type: "field", IP: []string{"geoip:cn"}, OutboundTag: "direct"},
		{Type: "field", Domain: []string{"geosite:category-ads-all"}, OutboundTag: "block"},
		{Type: "field", Domain: []string{"geosite:cn", "geosite:category-games@cn"}, OutboundTag: "direct"},
		{Type: "field", Network: "tcp,udp", OutboundTag: proxyTag},
	}
}

// AddRoutingRule appends a rule verbatim. Duplicates are the caller's
// concern.
func (c *Config) AddRoutingRule(rule RoutingRule) {
	if c.Routing == nil {
		c.Routing = &Routing{DomainStrategy: "IPIfNonMatch"}
	}
	c.Routing.Rules = append(c.Routing.Rules, rule)
}

// AddDirectDomain routes a single domain around the proxy.
func (c *Config) AddDirectDomain(domain string) {
	c.AddRoutingRule(RoutingRule{
		Type:        "field",
		Domain:      []string{domain},
		OutboundTag: "direct",
	})
}

// AddBlockedDomain sends a single domain to the blackhole.
func (c *Config) AddBlockedDomain(domain string) {
	c.AddRoutingRule(RoutingRule{
		Type:        "field",
		Domain:      []string{domain},
		OutboundTag: "block",
	})
}

// SetDirectDomains replaces the custom direct-domain rules with the given
// set. Built-in geo rules and everything not shaped like a single-domain
// direct rule survive, so repeated calls do not accumulate.
func (c *Config) SetDirectDomains(domains []string) {
	if c.Routing == nil {
		c.Routing = &Routing{DomainStrategy: "IPIfNonMatch"}
	}

	kept := make([]RoutingRule, 0, len(c.Routing.Rules))
	for _, rule := range c.Routing.Rules {
		custom := rule.OutboundTag == "direct" &&
			len(rule.Domain) == 1 &&
			!builtinGeoRules[rule.Domain[0]]
		if custom {
			continue
		}
		kept = append(kept, rule)
	}
	c.Routing.Rules = kept

	for _, domain := range domains {
		c.AddDirectDomain(domain)
	}
}

// SetLogLevel sets the engine log level. Unknown levels fall back to
// info rather than producing a config the engine rejects.
func (c *Config) SetLogLevel(level string) {
	switch level {
	case "debug", "info", "warning", "error", "none":
	default:
		level = "info"
	}
	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	c.Log.Loglevel = level
}

// SetInboundPort moves the first inbound of the given protocol to port.
// A protocol with no matching inbound is a silent no-op.
func (c *Config) SetInboundPort(port int, protocol string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port", parser.ErrInvalidNumericField)
	}
	for i := range c.Inbounds {
		if c.Inbounds[i].Protocol == protocol {
			c.Inbounds[i].Port = port
			break
		}
	}
	return nil
}

// EnableSniffing toggles destination sniffing on the socks inbound.
func (c *Config) EnableSniffing(enabled bool) {
	for i := range c.Inbounds {
		if c.Inbounds[i].Protocol == "socks" {
			c.Inbounds[i].Sniffing = &SniffingConfig{
				Enabled:      enabled,
				DestOverride: []string{"http", "tls"},
			}
			break
		}
	}
}

// Validate checks that the document is runnable: listeners exist,
// dialers exist, and exactly one outbound carries the proxy tag.
func (c *Config) Validate() error {
	if len(c.Inbounds) == 0 {
		return fmt.Errorf("%w: no inbounds", ErrValidationFailure)
	}
	if len(c.Outbounds) == 0 {
		return fmt.Errorf("%w: no outbounds", ErrValidationFailure)
	}

	proxies := 0
	for _, ob := range c.Outbounds {
		if ob.Tag == proxyTag {
			proxies++
		}
	}
	if proxies != 1 {
		return fmt.Errorf("%w: want exactly one proxy outbound, found %d", ErrValidationFailure, proxies)
	}
	return nil
}
