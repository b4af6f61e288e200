package parser

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ToURI serializes a Profile back into a shareable link.
func (p *Profile) ToURI() string {
	switch p.Descriptor.Protocol {
	case ProtocolVMess:
		return p.toVMessURI()
	case ProtocolVLess:
		return p.toVLessURI()
	}
	return ""
}

func (p *Profile) toVMessURI() string {
	d := p.Descriptor
	v := vmessJSON{
		V:    "2",
		Ps:   p.Remark,
		Add:  d.Address,
		Port: d.Port,
		ID:   d.ID,
		Aid:  d.AlterID,
		Scy:  d.Security,
	}

	if s := p.Stream; s != nil {
		v.Net = string(s.Network)
		switch {
		case s.WS != nil:
			v.Path = s.WS.Path
			v.Host = s.WS.Host
		case s.H2 != nil:
			v.Path = s.H2.Path
			if len(s.H2.Hosts) > 0 {
				v.Host = s.H2.Hosts[0]
			}
		case s.TCP != nil:
			v.Type = "http"
			if len(s.TCP.Paths) > 0 {
				v.Path = s.TCP.Paths[0]
			}
			if len(s.TCP.Hosts) > 0 {
				v.Host = s.TCP.Hosts[0]
			}
		}
	}
	if sec := p.Security; sec != nil && sec.Mode == SecurityTLS {
		v.Tls = "tls"
		if sec.TLS != nil {
			v.Sni = sec.TLS.ServerName
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(data)
}

func (p *Profile) toVLessURI() string {
	d := p.Descriptor
	u := url.URL{
		Scheme:   "vless",
		User:     url.User(d.ID),
		Host:     fmt.Sprintf("%s:%d", d.Address, d.Port),
		Fragment: p.Remark,
	}

	q := url.Values{}
	encryption := d.Encryption
	if encryption == "" {
		encryption = "none"
	}
	q.Set("encryption", encryption)
	if d.Flow != "" {
		q.Set("flow", d.Flow)
	}

	if s := p.Stream; s != nil {
		if s.Network != "" && s.Network != NetworkTCP {
			q.Set("type", string(s.Network))
		}
		switch {
		case s.WS != nil:
			if s.WS.Path != "" {
				q.Set("path", s.WS.Path)
			}
			if s.WS.Host != "" {
				q.Set("host", s.WS.Host)
			}
		case s.H2 != nil:
			if s.H2.Path != "" {
				q.Set("path", s.H2.Path)
			}
			if len(s.H2.Hosts) > 0 {
				q.Set("host", s.H2.Hosts[0])
			}
		case s.HTTP != nil:
			if s.HTTP.Path != "" {
				q.Set("path", s.HTTP.Path)
			}
			if len(s.HTTP.Hosts) > 0 {
				q.Set("host", s.HTTP.Hosts[0])
			}
		case s.XHTTP != nil:
			if s.XHTTP.Path != "" {
				q.Set("path", s.XHTTP.Path)
			}
		}
	}

	if sec := p.Security; sec != nil {
		switch sec.Mode {
		case SecurityTLS:
			q.Set("security", "tls")
			if t := sec.TLS; t != nil {
				if t.ServerName != "" {
					q.Set("sni", t.ServerName)
				}
				if t.AllowInsecure {
					q.Set("allowInsecure", "1")
				}
				if len(t.ALPN) > 0 {
					q.Set("alpn", strings.Join(t.ALPN, ","))
				}
				if t.Fingerprint != "" {
					q.Set("fp", t.Fingerprint)
				}
			}
		case SecurityReality:
			q.Set("security", "reality")
			if r := sec.Reality; r != nil {
				if r.ServerName != "" {
					q.Set("sni", r.ServerName)
				}
				if r.Fingerprint != "" {
					q.Set("fp", r.Fingerprint)
				}
				if r.PublicKey != "" {
					q.Set("pbk", r.PublicKey)
				}
				if r.ShortID != "" {
					q.Set("sid", r.ShortID)
				}
				if r.SpiderX != "" {
					q.Set("spx", r.SpiderX)
				}
			}
		}
	}

	u.RawQuery = q.Encode()
	return u.String()
}
