package v2ray

import (
	"encoding/json"

	"github.com/ramohamadh/V2rayClient/internal/v2ray/parser"
)

// Assemble converts a decoded profile into an outbound entry. The result
// carries no tag; SetOutbound stamps it when the entry becomes the active
// proxy.
func Assemble(p *parser.Profile) Outbound {
	d := p.Descriptor

	user := VnextUser{ID: d.ID}
	switch d.Protocol {
	case parser.ProtocolVMess:
		alterID := d.AlterID
		user.AlterID = &alterID
		user.Security = d.Security
	case parser.ProtocolVLess:
		user.Encryption = d.Encryption
		user.Flow = d.Flow
	}

	settings := VnextSettings{
		Vnext: []VnextServer{{
			Address: d.Address,
			Port:    d.Port,
			Users:   []VnextUser{user},
		}},
	}

	return Outbound{
		Protocol:       string(d.Protocol),
		Settings:       jsonRaw(settings),
		StreamSettings: buildStreamSettings(p.Stream, p.Security),
	}
}

// buildStreamSettings renders the transport and security profiles into
// the wire block. Empty sub-objects never appear; a profile pair that is
// entirely absent yields no block at all.
func buildStreamSettings(stream *parser.StreamProfile, sec *parser.SecurityProfile) *StreamSettings {
	if stream == nil && sec == nil {
		return nil
	}
	ss := &StreamSettings{}

	if stream != nil {
		ss.Network = string(stream.Network)
		switch {
		case stream.WS != nil:
			ws := &WSConfig{Path: stream.WS.Path}
			if stream.WS.Host != "" {
				ws.Headers = map[string]string{"Host": stream.WS.Host}
			}
			ss.WSSettings = ws
		case stream.H2 != nil:
			ss.HTTPSettings = &HTTPConfig{
				Path: stream.H2.Path,
				Host: stream.H2.Hosts,
			}
		case stream.HTTP != nil:
			ss.HTTPSettings = &HTTPConfig{
				Path: stream.HTTP.Path,
				Host: stream.HTTP.Hosts,
			}
		case stream.TCP != nil:
			tcp := &TCPConfig{Type: "http"}
			if len(stream.TCP.Paths) > 0 || len(stream.TCP.Hosts) > 0 {
				tcp.HTTPSettings = &DisguiseConfig{
					Path: stream.TCP.Paths,
					Host: stream.TCP.Hosts,
				}
			}
			ss.TCPSettings = tcp
		case stream.XHTTP != nil:
			ss.XHTTPSettings = &XHTTPConfig{Path: stream.XHTTP.Path}
		}
	}

	if sec != nil {
		switch sec.Mode {
		case parser.SecurityTLS:
			ss.Security = "tls"
			if t := sec.TLS; t != nil {
				ss.TLSSettings = &TLSConfig{
					ServerName:    t.ServerName,
					AllowInsecure: t.AllowInsecure,
					ALPN:          t.ALPN,
					Fingerprint:   t.Fingerprint,
				}
			}
		case parser.SecurityReality:
			ss.Security = "reality"
			if r := sec.Reality; r != nil {
				ss.RealitySettings = &RealityConfig{
					ServerName:  r.ServerName,
					Fingerprint: r.Fingerprint,
					PublicKey:   r.PublicKey,
					ShortID:     r.ShortID,
					SpiderX:     r.SpiderX,
				}
			}
		}
	}
	return ss
}

func jsonRaw(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
