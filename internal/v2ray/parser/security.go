package parser

import (
	"net/url"
	"strings"
)

// Certificate verification defaults differ between the two link formats.
const (
	legacyVMessAllowInsecure  = true
	vlessAllowInsecureDefault = false
)

// fingerprintFallback replaces TLS fingerprints outside the known set.
// REALITY fingerprints pass through untouched.
const fingerprintFallback = "chrome"

var knownFingerprints = map[string]bool{
	"chrome":     true,
	"firefox":    true,
	"safari":     true,
	"edge":       true,
	"360":        true,
	"qq":         true,
	"android":    true,
	"ios":        true,
	"random":     true,
	"randomized": true,
}

// buildVMessSecurity assembles the security profile of a legacy vmess
// payload. Only called when the payload names a network.
func buildVMessSecurity(v *vmessJSON) *SecurityProfile {
	if v.Tls != "tls" {
		return nil
	}

	serverName := v.Sni
	if serverName == "" {
		serverName = v.Host
	}
	if serverName == "" {
		serverName = v.Add
	}
	return &SecurityProfile{
		Mode: SecurityTLS,
		TLS: &TLSSettings{
			ServerName:    serverName,
			AllowInsecure: legacyVMessAllowInsecure,
		},
	}
}

// buildVLessSecurity assembles the security profile from vless query
// parameters. Links without a recognized security value get none.
func buildVLessSecurity(q url.Values) *SecurityProfile {
	switch q.Get("security") {
	case "tls":
		tls := &TLSSettings{AllowInsecure: vlessAllowInsecureDefault}
		if q.Get("allowInsecure") == "1" {
			tls.AllowInsecure = true
		}
		if sni := q.Get("sni"); sni != "" {
			tls.ServerName = sni
		}
		if alpn := q.Get("alpn"); alpn != "" {
			tls.ALPN = strings.Split(alpn, ",")
		}
		if fp := q.Get("fp"); fp != "" {
			if !knownFingerprints[fp] {
				fp = fingerprintFallback
			}
			tls.Fingerprint = fp
		}
		return &SecurityProfile{Mode: SecurityTLS, TLS: tls}

	case "reality":
		reality := &RealitySettings{}
		if sni := q.Get("sni"); sni != "" {
			reality.ServerName = sni
		}
		if fp := q.Get("fp"); fp != "" {
			reality.Fingerprint = fp
		}
		if pbk := q.Get("pbk"); pbk != "" {
			reality.PublicKey = pbk
		}
		if sid := q.Get("sid"); sid != "" {
			reality.ShortID = sid
		}
		if spx := q.Get("spx"); spx != "" {
			reality.SpiderX = spx
		}
		return &SecurityProfile{Mode: SecurityReality, Reality: reality}
	}
	return nil
}
