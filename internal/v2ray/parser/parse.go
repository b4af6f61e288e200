package parser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// vmessJSON mirrors the JSON document embedded in legacy vmess links.
// Producers disagree on whether numeric fields are numbers or strings,
// so those stay loosely typed until coercion.
type vmessJSON struct {
	V    interface{} `json:"v,omitempty"`
	Ps   string      `json:"ps,omitempty"`
	Add  string      `json:"add,omitempty"`
	Host string      `json:"host,omitempty"`
	Port interface{} `json:"port,omitempty"`
	ID   string      `json:"id,omitempty"`
	Aid  interface{} `json:"aid,omitempty"`
	Scy  string      `json:"scy,omitempty"`
	Net  string      `json:"net,omitempty"`
	Type string      `json:"type,omitempty"`
	Path string      `json:"path,omitempty"`
	Tls  string      `json:"tls,omitempty"`
	Sni  string      `json:"sni,omitempty"`
}

// Parse decodes a share link into a Profile. The scheme picks the
// decoder; anything but vmess and vless is rejected.
func Parse(raw string) (*Profile, error) {
	raw = FixIllegalURL(raw)
	parts := strings.SplitN(raw, "://", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: unknown", ErrUnsupportedScheme)
	}

	var (
		p   *Profile
		err error
	)
	switch strings.ToLower(parts[0]) {
	case "vmess":
		p, err = parseVMess(parts[1])
	case "vless":
		p, err = parseVLess(raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, parts[0])
	}
	if err != nil {
		return nil, err
	}

	p.RawURI = raw
	return p, nil
}

// parseVMess decodes the payload of a vmess link. The payload is either
// bare base64 JSON or the hybrid base64?query form whose query overrides
// the decoded security settings.
func parseVMess(payload string) (*Profile, error) {
	var rawQuery string
	if i := strings.Index(payload, "?"); i >= 0 {
		payload, rawQuery = payload[:i], payload[i+1:]
	}

	decoded, err := DecodeBase64(unescapeIfEncoded(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var v vmessJSON
	if err := json.Unmarshal([]byte(decoded), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	address := v.Add
	if address == "" {
		address = v.Host
	}
	if address == "" {
		return nil, fmt.Errorf("%w: add", ErrMissingRequiredField)
	}
	if falsy(v.Port) {
		return nil, fmt.Errorf("%w: port", ErrMissingRequiredField)
	}
	if v.ID == "" {
		return nil, fmt.Errorf("%w: id", ErrMissingRequiredField)
	}

	port, err := coerceInt(v.Port, "port")
	if err != nil {
		return nil, err
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port", ErrInvalidNumericField)
	}

	alterID := 0
	if !falsy(v.Aid) {
		if alterID, err = coerceInt(v.Aid, "aid"); err != nil {
			return nil, err
		}
	}

	method := v.Scy
	if method == "" {
		method = "auto"
	}

	p := &Profile{
		Descriptor: Descriptor{
			Protocol: ProtocolVMess,
			Address:  address,
			Port:     port,
			ID:       v.ID,
			AlterID:  alterID,
			Security: method,
		},
		Remark: v.Ps,
	}

	// A tls flag on a payload without a net tag is ignored.
	if v.Net != "" {
		if p.Stream, err = buildVMessStream(&v); err != nil {
			return nil, err
		}
		p.Security = buildVMessSecurity(&v)
	}

	if rawQuery != "" {
		if err := applyVMessOverrides(p, rawQuery); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// applyVMessOverrides applies the query parameters of a hybrid vmess link
// on top of the decoded payload. Overrides replace decoded values; an sni
// without any security layer to attach to is dropped.
func applyVMessOverrides(p *Profile, rawQuery string) error {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if security := q.Get("security"); security != "" {
		switch SecurityMode(security) {
		case SecurityTLS:
			if p.Security == nil || p.Security.Mode != SecurityTLS {
				p.Security = &SecurityProfile{Mode: SecurityTLS, TLS: &TLSSettings{}}
			}
		case SecurityReality:
			if p.Security == nil || p.Security.Mode != SecurityReality {
				p.Security = &SecurityProfile{Mode: SecurityReality, Reality: &RealitySettings{}}
			}
		case SecurityNone:
			p.Security = nil
		}
	}

	if sni := q.Get("sni"); sni != "" && p.Security != nil {
		switch p.Security.Mode {
		case SecurityTLS:
			p.Security.TLS.ServerName = sni
		case SecurityReality:
			p.Security.Reality.ServerName = sni
		}
	}
	return nil
}

// parseVLess decodes a vless URI of the form
// vless://uuid@host:port?params#remark.
func parseVLess(raw string) (*Profile, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var id string
	if u.User != nil {
		id = u.User.Username()
	}
	if id == "" {
		return nil, fmt.Errorf("%w: uuid", ErrMissingRequiredField)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: host", ErrMissingRequiredField)
	}

	port := 443
	if portStr := u.Port(); portStr != "" {
		if port, err = parsePort(portStr, "port"); err != nil {
			return nil, err
		}
	}

	q := u.Query()
	encryption := q.Get("encryption")
	if encryption == "" {
		encryption = "none"
	}

	stream, err := buildVLessStream(q)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Descriptor: Descriptor{
			Protocol:   ProtocolVLess,
			Address:    host,
			Port:       port,
			ID:         id,
			Encryption: encryption,
			Flow:       q.Get("flow"),
		},
		Stream:   stream,
		Security: buildVLessSecurity(q),
		Remark:   u.Fragment,
	}, nil
}

// falsy reports whether a loosely typed JSON value counts as absent for
// the required-field checks. Zero numbers and empty strings are absent;
// the string "0" is not.
func falsy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	case bool:
		return !t
	}
	return false
}

// coerceInt converts a loosely typed JSON number or numeric string.
func coerceInt(v interface{}, field string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprintf("%v", v)))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidNumericField, field)
	}
	return n, nil
}
