package v2ray

import "encoding/json"

// Config is the engine configuration document. Its JSON form is the wire
// contract with the core, so field names and shapes here must stay in
// sync with what the loader expects.
type Config struct {
	Log       *LogConfig `json:"log,omitempty"`
	Inbounds  []Inbound  `json:"inbounds"`
	Outbounds []Outbound `json:"outbounds"`
	Routing   *Routing   `json:"routing,omitempty"`
}

// LogConfig controls engine log level and output files.
type LogConfig struct {
	Loglevel string `json:"loglevel,omitempty"`
	Access   string `json:"access,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Inbound is a listener entry.
type Inbound struct {
	Port     int              `json:"port"`
	Listen   string           `json:"listen,omitempty"`
	Protocol string           `json:"protocol"`
	Settings *InboundSettings `json:"settings,omitempty"`
	Sniffing *SniffingConfig  `json:"sniffing,omitempty"`
	Tag      string           `json:"tag,omitempty"`
}

// InboundSettings covers the socks and http listener options.
type InboundSettings struct {
	Auth    string `json:"auth,omitempty"`
	UDP     bool   `json:"udp,omitempty"`
	IP      string `json:"ip,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// SniffingConfig controls destination sniffing on an inbound.
type SniffingConfig struct {
	Enabled      bool     `json:"enabled"`
	DestOverride []string `json:"destOverride,omitempty"`
}

// Outbound is a dialer entry. Settings stays raw because every protocol
// has its own shape and foreign entries must survive a load and save
// untouched.
type Outbound struct {
	Protocol       string          `json:"protocol"`
	Settings       json.RawMessage `json:"settings,omitempty"`
	StreamSettings *StreamSettings `json:"streamSettings,omitempty"`
	Tag            string          `json:"tag,omitempty"`
}

// VnextSettings is the settings payload of vmess and vless outbounds.
type VnextSettings struct {
	Vnext []VnextServer `json:"vnext"`
}

// VnextServer is one upstream endpoint.
type VnextServer struct {
	Address string      `json:"address"`
	Port    int         `json:"port"`
	Users   []VnextUser `json:"users"`
}

// VnextUser is the credential entry of a vnext server. AlterID and
// Security belong to vmess users, Encryption and Flow to vless ones.
type VnextUser struct {
	ID         string `json:"id"`
	AlterID    *int   `json:"alterId,omitempty"`
	Security   string `json:"security,omitempty"`
	Encryption string `json:"encryption,omitempty"`
	Flow       string `json:"flow,omitempty"`
}

// StreamSettings is the transport block of an outbound.
type StreamSettings struct {
	Network         string         `json:"network,omitempty"`
	Security        string         `json:"security,omitempty"`
	TLSSettings     *TLSConfig     `json:"tlsSettings,omitempty"`
	RealitySettings *RealityConfig `json:"realitySettings,omitempty"`
	WSSettings      *WSConfig      `json:"wsSettings,omitempty"`
	HTTPSettings    *HTTPConfig    `json:"httpSettings,omitempty"`
	TCPSettings     *TCPConfig     `json:"tcpSettings,omitempty"`
	XHTTPSettings   *XHTTPConfig   `json:"xhttpSettings,omitempty"`
}

// TLSConfig is the TLS handshake block.
type TLSConfig struct {
	ServerName    string   `json:"serverName,omitempty"`
	AllowInsecure bool     `json:"allowInsecure"`
	ALPN          []string `json:"alpn,omitempty"`
	Fingerprint   string   `json:"fingerprint,omitempty"`
}

// RealityConfig is the REALITY handshake block.
type RealityConfig struct {
	ServerName  string `json:"serverName,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	PublicKey   string `json:"publicKey,omitempty"`
	ShortID     string `json:"shortId,omitempty"`
	SpiderX     string `json:"spiderX,omitempty"`
}

// WSConfig is the WebSocket transport block.
type WSConfig struct {
	Path    string            `json:"path,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// HTTPConfig is the transport block shared by h2 and native http.
type HTTPConfig struct {
	Path string   `json:"path,omitempty"`
	Host []string `json:"host,omitempty"`
}

// TCPConfig is the raw TCP transport block with an optional HTTP
// disguise header.
type TCPConfig struct {
	Type         string          `json:"type,omitempty"`
	HTTPSettings *DisguiseConfig `json:"httpSettings,omitempty"`
}

// DisguiseConfig carries the disguise request lists.
type DisguiseConfig struct {
	Path []string `json:"path,omitempty"`
	Host []string `json:"host,omitempty"`
}

// XHTTPConfig is the XHTTP transport block.
type XHTTPConfig struct {
	Path string `json:"path,omitempty"`
}

// Routing is the rule table.
type Routing struct {
	DomainStrategy string        `json:"domainStrategy,omitempty"`
	Rules          []RoutingRule `json:"rules"`
}

// RoutingRule is one routing entry. Exactly one of IP, Domain or
// Network selects the traffic.
type RoutingRule struct {
	Type        string   `json:"type"`
	IP          []string `json:"ip,omitempty"`
	Domain      []string `json:"domain,omitempty"`
	Network     string   `json:"network,omitempty"`
	OutboundTag string   `json:"outboundTag"`
}

// DefaultConfig returns a fresh baseline document: local socks and http
// inbounds, direct and block outbounds, and conservative routing. Every
// call builds a new value, so callers can mutate freely.
func DefaultConfig() *Config {
	return &Config{
		Log: &LogConfig{
			Loglevel: "debug",
			Access:   "access.log",
			Error:    "error.log",
		},
		Inbounds: []Inbound{
			{
				Port:     1080,
				Listen:   "127.0.0.1",
				Protocol: "socks",
				Settings: &InboundSettings{Auth: "noauth", UDP: true, IP: "127.0.0.1"},
				Sniffing: &SniffingConfig{Enabled: true, DestOverride: []string{"http", "tls"}},
			},
			{
				Port:     1081,
				Listen:   "127.0.0.1",
				Protocol: "http",
				Settings: &InboundSettings{Timeout: 300},
			},
		},
		Outbounds: []Outbound{
			{Protocol: "freedom", Settings: json.RawMessage(`{}`), Tag: "direct"},
			{Protocol: "blackhole", Settings: json.RawMessage(`{}`), Tag: "block"},
		},
		Routing: &Routing{
			DomainStrategy: "IPIfNonMatch",
			Rules: []RoutingRule{
				{Type: "field", IP: []string{"geoip:private"}, OutboundTag: "direct"},
				{Type: "field", IP: []string{"geoip:cn"}, OutboundTag: "direct"},
				{Type: "field", Domain: []string{"geosite:category-ads-all"}, OutboundTag: "block"},
			},
		},
	}
}
