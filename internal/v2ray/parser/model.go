package parser

// Protocol identifies the proxy protocol a link was decoded from.
type Protocol string

const (
	ProtocolVMess Protocol = "vmess"
	ProtocolVLess Protocol = "vless"
)

// Network identifies the transport carrying the proxy traffic.
type Network string

const (
	NetworkTCP   Network = "tcp"
	NetworkWS    Network = "ws"
	NetworkH2    Network = "h2"
	NetworkHTTP  Network = "http"
	NetworkXHTTP Network = "xhttp"
)

// SecurityMode identifies the outer security layer of the transport.
type SecurityMode string

const (
	SecurityNone    SecurityMode = "none"
	SecurityTLS     SecurityMode = "tls"
	SecurityReality SecurityMode = "reality"
)

// Descriptor holds the connection identity of a decoded link.
type Descriptor struct {
	Protocol Protocol
	Address  string
	Port     int
	ID       string

	// VMess credentials
	AlterID  int
	Security string // auto, aes-128-gcm, chacha20-poly1305, none

	// VLESS credentials
	Encryption string
	Flow       string // empty when the link carries none
}

// StreamProfile describes the transport layer. Exactly the variant named
// by Network is non-nil; a nil variant with Network set means the link
// carried no transport options beyond the network tag itself.
type StreamProfile struct {
	Network Network

	WS    *WSSettings
	H2    *H2Settings
	HTTP  *HTTPSettings
	TCP   *TCPSettings
	XHTTP *XHTTPSettings
}

// WSSettings carries WebSocket transport options.
type WSSettings struct {
	Path string
	Host string // request Host header
}

// H2Settings carries HTTP/2 transport options.
type H2Settings struct {
	Path  string
	Hosts []string
}

// HTTPSettings carries native HTTP transport options.
type HTTPSettings struct {
	Path  string
	Hosts []string
}

// TCPSettings carries the HTTP-disguise header for raw TCP transports.
// Its presence means the disguise was requested even when Paths and
// Hosts are empty.
type TCPSettings struct {
	Paths []string
	Hosts []string
}

// XHTTPSettings carries XHTTP transport options.
type XHTTPSettings struct {
	Path string
}

// SecurityProfile describes the security layer. Exactly the variant named
// by Mode is non-nil; links without a security layer produce no profile
// at all rather than a SecurityNone one.
type SecurityProfile struct {
	Mode SecurityMode

	TLS     *TLSSettings
	Reality *RealitySettings
}

// TLSSettings carries the TLS handshake options.
type TLSSettings struct {
	ServerName    string
	AllowInsecure bool
	ALPN          []string
	Fingerprint   string
}

// RealitySettings carries the REALITY handshake options.
type RealitySettings struct {
	ServerName  string
	Fingerprint string
	PublicKey   string
	ShortID     string
	SpiderX     string
}

// Profile is the normalized result of decoding a share link.
type Profile struct {
	Descriptor Descriptor

	// Stream and Security are nil when the link carries no settings for
	// the respective layer.
	Stream   *StreamProfile
	Security *SecurityProfile

	Remark string
	RawURI string
}
