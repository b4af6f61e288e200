package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Hash returns a stable identity for deduplication. Cosmetic fields like
// the remark do not contribute, and equivalent defaults hash the same
// whether spelled out or omitted.
func (p *Profile) Hash() string {
	d := p.Descriptor

	// --- 1. Core identity ---
	parts := []string{
		string(d.Protocol),
		strings.ToLower(d.Address),
		strconv.Itoa(d.Port),
		d.ID,
	}

	// --- 2. Credentials ---
	method := d.Security
	if d.Protocol == ProtocolVLess {
		method = d.Encryption
		if method == "none" {
			method = ""
		}
	}
	parts = append(parts, method, d.Flow)

	// --- 3. Transport ---
	network := string(NetworkTCP)
	path, host := "", ""
	if s := p.Stream; s != nil {
		network = string(s.Network)
		switch {
		case s.WS != nil:
			path, host = s.WS.Path, s.WS.Host
		case s.H2 != nil:
			path = s.H2.Path
			host = strings.Join(s.H2.Hosts, ",")
		case s.HTTP != nil:
			path = s.HTTP.Path
			host = strings.Join(s.HTTP.Hosts, ",")
		case s.TCP != nil:
			path = strings.Join(s.TCP.Paths, ",")
			host = strings.Join(s.TCP.Hosts, ",")
		case s.XHTTP != nil:
			path = s.XHTTP.Path
		}
	}
	parts = append(parts, network, path, host)

	// --- 4. Security ---
	security, serverName, publicKey, shortID := "", "", "", ""
	if sec := p.Security; sec != nil {
		security = string(sec.Mode)
		switch {
		case sec.TLS != nil:
			serverName = sec.TLS.ServerName
		case sec.Reality != nil:
			serverName = sec.Reality.ServerName
			publicKey = sec.Reality.PublicKey
			shortID = sec.Reality.ShortID
		}
	}
	parts = append(parts, security, serverName, publicKey, shortID)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
