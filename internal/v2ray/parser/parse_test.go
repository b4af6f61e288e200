package parser

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// legacyLink carries a tls flag but no net tag.
const legacyLink = "vmess://eyJhZGQiOiJ0ZXN0LmV4YW1wbGUuY29tIiwiYWlkIjoiMCIsImlkIjoiMTIzNDU2Nzg5MCIsInBvcnQiOiI0NDMiLCJ0bHMiOiJ0bHMiLCJ0eXBlIjoibm9uZSJ9"

func vmessLink(t *testing.T, fields map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return "vmess://" + base64.StdEncoding.EncodeToString(data)
}

func vmessFields(overrides map[string]interface{}) map[string]interface{} {
	fields := map[string]interface{}{
		"add":  "test.example.com",
		"port": "443",
		"id":   "1234567890",
	}
	for k, v := range overrides {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}
	return fields
}

func TestParseVMessLegacy(t *testing.T) {
	p, err := Parse(legacyLink)
	require.NoError(t, err)

	assert.Equal(t, ProtocolVMess, p.Descriptor.Protocol)
	assert.Equal(t, "test.example.com", p.Descriptor.Address)
	assert.Equal(t, 443, p.Descriptor.Port)
	assert.Equal(t, "1234567890", p.Descriptor.ID)
	assert.Equal(t, 0, p.Descriptor.AlterID)
	assert.Equal(t, "auto", p.Descriptor.Security)

	// Without a net tag there is no transport block, and the tls flag
	// has nothing to attach to.
	assert.Nil(t, p.Stream)
	assert.Nil(t, p.Security)
}

func TestParseVMessWebSocket(t *testing.T) {
	link := vmessLink(t, vmessFields(map[string]interface{}{
		"aid":  "2",
		"scy":  "aes-128-gcm",
		"net":  "ws",
		"path": "/ws",
		"host": "cdn.example.com",
		"tls":  "tls",
		"sni":  "sni.example.com",
	}))

	p, err := Parse(link)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Descriptor.AlterID)
	assert.Equal(t, "aes-128-gcm", p.Descriptor.Security)

	require.NotNil(t, p.Stream)
	assert.Equal(t, NetworkWS, p.Stream.Network)
	require.NotNil(t, p.Stream.WS)
	assert.Equal(t, "/ws", p.Stream.WS.Path)
	assert.Equal(t, "cdn.example.com", p.Stream.WS.Host)

	require.NotNil(t, p.Security)
	assert.Equal(t, SecurityTLS, p.Security.Mode)
	require.NotNil(t, p.Security.TLS)
	assert.Equal(t, "sni.example.com", p.Security.TLS.ServerName)
	assert.True(t, p.Security.TLS.AllowInsecure)
}

func TestParseVMessServerNameFallback(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]interface{}
		want      string
	}{
		{"sni wins", map[string]interface{}{"net": "ws", "tls": "tls", "sni": "s.example.com", "host": "h.example.com"}, "s.example.com"},
		{"host next", map[string]interface{}{"net": "ws", "tls": "tls", "host": "h.example.com"}, "h.example.com"},
		{"address last", map[string]interface{}{"net": "ws", "tls": "tls"}, "test.example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(vmessLink(t, vmessFields(tc.overrides)))
			require.NoError(t, err)
			require.NotNil(t, p.Security)
			assert.Equal(t, tc.want, p.Security.TLS.ServerName)
		})
	}
}

func TestParseVMessNumericJSON(t *testing.T) {
	link := vmessLink(t, vmessFields(map[string]interface{}{
		"port": 8443,
		"aid":  1,
	}))

	p, err := Parse(link)
	require.NoError(t, err)
	assert.Equal(t, 8443, p.Descriptor.Port)
	assert.Equal(t, 1, p.Descriptor.AlterID)
}

func TestParseVMessHostFallback(t *testing.T) {
	link := vmessLink(t, vmessFields(map[string]interface{}{
		"add":  nil,
		"host": "backup.example.com",
	}))

	p, err := Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "backup.example.com", p.Descriptor.Address)
}

func TestParseVMessMissingFields(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]interface{}
		field     string
	}{
		{"no address", map[string]interface{}{"add": nil}, "add"},
		{"no port", map[string]interface{}{"port": nil}, "port"},
		{"zero port number", map[string]interface{}{"port": 0}, "port"},
		{"no id", map[string]interface{}{"id": nil}, "id"},
		{"empty id", map[string]interface{}{"id": ""}, "id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(vmessLink(t, vmessFields(tc.overrides)))
			require.ErrorIs(t, err, ErrMissingRequiredField)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestParseVMessInvalidNumbers(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]interface{}
		field     string
	}{
		{"port not a number", map[string]interface{}{"port": "abc"}, "port"},
		{"port out of range", map[string]interface{}{"port": 99999}, "port"},
		{"zero port string", map[string]interface{}{"port": "0"}, "port"},
		{"aid not a number", map[string]interface{}{"aid": "x"}, "aid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(vmessLink(t, vmessFields(tc.overrides)))
			require.ErrorIs(t, err, ErrInvalidNumericField)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestParseVMessMalformed(t *testing.T) {
	_, err := Parse("vmess://!!!not-base64!!!")
	assert.ErrorIs(t, err, ErrMalformedPayload)

	notJSON := "vmess://" + base64.StdEncoding.EncodeToString([]byte("not json"))
	_, err = Parse(notJSON)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParseVMessPaddingRestored(t *testing.T) {
	payload := strings.TrimPrefix(vmessLink(t, vmessFields(nil)), "vmess://")
	stripped := strings.TrimRight(payload, "=")

	p, err := Parse("vmess://" + stripped)
	require.NoError(t, err)
	assert.Equal(t, "test.example.com", p.Descriptor.Address)
}

func TestParseVMessPercentEncoded(t *testing.T) {
	payload := strings.TrimPrefix(vmessLink(t, vmessFields(nil)), "vmess://")

	p, err := Parse("vmess://" + url.QueryEscape(payload))
	require.NoError(t, err)
	assert.Equal(t, "test.example.com", p.Descriptor.Address)
}

func TestParseVMessTCPDisguise(t *testing.T) {
	link := vmessLink(t, vmessFields(map[string]interface{}{
		"net":  "tcp",
		"type": "http",
		"path": "/disguise",
		"host": "front.example.com",
	}))

	p, err := Parse(link)
	require.NoError(t, err)
	require.NotNil(t, p.Stream)
	assert.Equal(t, NetworkTCP, p.Stream.Network)
	require.NotNil(t, p.Stream.TCP)
	assert.Equal(t, []string{"/disguise"}, p.Stream.TCP.Paths)
	assert.Equal(t, []string{"front.example.com"}, p.Stream.TCP.Hosts)

	// Plain tcp carries no disguise block.
	plain, err := Parse(vmessLink(t, vmessFields(map[string]interface{}{"net": "tcp"})))
	require.NoError(t, err)
	require.NotNil(t, plain.Stream)
	assert.Nil(t, plain.Stream.TCP)
}

func TestParseVMessUnsupportedNetwork(t *testing.T) {
	_, err := Parse(vmessLink(t, vmessFields(map[string]interface{}{"net": "grpc"})))
	require.ErrorIs(t, err, ErrUnsupportedNetworkType)
	assert.Contains(t, err.Error(), "grpc")
}

func TestParseVMessHybridOverrides(t *testing.T) {
	t.Run("creates security on netless payload", func(t *testing.T) {
		p, err := Parse(legacyLink + "?security=tls&sni=override.example.com")
		require.NoError(t, err)
		require.NotNil(t, p.Security)
		assert.Equal(t, SecurityTLS, p.Security.Mode)
		assert.Equal(t, "override.example.com", p.Security.TLS.ServerName)
		assert.False(t, p.Security.TLS.AllowInsecure)
	})

	t.Run("replaces server name but keeps decoded fields", func(t *testing.T) {
		link := vmessLink(t, vmessFields(map[string]interface{}{
			"net": "ws", "tls": "tls", "sni": "decoded.example.com",
		}))
		p, err := Parse(link + "?security=tls&sni=override.example.com")
		require.NoError(t, err)
		require.NotNil(t, p.Security)
		assert.Equal(t, "override.example.com", p.Security.TLS.ServerName)
		assert.True(t, p.Security.TLS.AllowInsecure)
	})

	t.Run("none strips security", func(t *testing.T) {
		link := vmessLink(t, vmessFields(map[string]interface{}{
			"net": "ws", "tls": "tls",
		}))
		p, err := Parse(link + "?security=none&x=1")
		require.NoError(t, err)
		assert.Nil(t, p.Security)
		require.NotNil(t, p.Stream)
	})

	t.Run("dangling sni is dropped", func(t *testing.T) {
		p, err := Parse(legacyLink + "?sni=nowhere.example.com&x=1")
		require.NoError(t, err)
		assert.Nil(t, p.Security)
	})
}

func TestParseSchemeDispatch(t *testing.T) {
	_, err := Parse("ftp://files.example.com/file")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.Contains(t, err.Error(), "ftp")

	_, err = Parse("no scheme here")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.Contains(t, err.Error(), "unknown")

	upper := "VMESS://" + strings.TrimPrefix(legacyLink, "vmess://")
	p, err := Parse(upper)
	require.NoError(t, err)
	assert.Equal(t, ProtocolVMess, p.Descriptor.Protocol)
}

const demoVLess = "vless://aa6fdaa6-5d69-48c6-96a7-45a3303da611@snapp.mumumumumu.ir:443?encryption=none&security=tls&sni=snapp.mumumumumu.ir&alpn=h3%2Ch2%2Chttp%2F1.1&fp=chrome&allowInsecure=1&type=ws&path=%2F"

func TestParseVLessFull(t *testing.T) {
	p, err := Parse(demoVLess)
	require.NoError(t, err)

	d := p.Descriptor
	assert.Equal(t, ProtocolVLess, d.Protocol)
	assert.Equal(t, "aa6fdaa6-5d69-48c6-96a7-45a3303da611", d.ID)
	assert.Equal(t, "snapp.mumumumumu.ir", d.Address)
	assert.Equal(t, 443, d.Port)
	assert.Equal(t, "none", d.Encryption)
	assert.Empty(t, d.Flow)

	require.NotNil(t, p.Stream)
	assert.Equal(t, NetworkWS, p.Stream.Network)
	require.NotNil(t, p.Stream.WS)
	assert.Equal(t, "/", p.Stream.WS.Path)

	require.NotNil(t, p.Security)
	require.NotNil(t, p.Security.TLS)
	assert.Equal(t, "snapp.mumumumumu.ir", p.Security.TLS.ServerName)
	assert.Equal(t, []string{"h3", "h2", "http/1.1"}, p.Security.TLS.ALPN)
	assert.Equal(t, "chrome", p.Security.TLS.Fingerprint)
	assert.True(t, p.Security.TLS.AllowInsecure)
}

func TestParseVLessDefaults(t *testing.T) {
	p, err := Parse("vless://uuid-value@example.com")
	require.NoError(t, err)

	assert.Equal(t, 443, p.Descriptor.Port)
	assert.Equal(t, "none", p.Descriptor.Encryption)
	require.NotNil(t, p.Stream)
	assert.Equal(t, NetworkTCP, p.Stream.Network)
	assert.Nil(t, p.Stream.TCP)
	assert.Nil(t, p.Security)
}

func TestParseVLessXHTTPRemap(t *testing.T) {
	p, err := Parse("vless://u@example.com:443?type=xhttp&path=/stream")
	require.NoError(t, err)

	require.NotNil(t, p.Stream)
	assert.Equal(t, NetworkHTTP, p.Stream.Network)
	require.NotNil(t, p.Stream.HTTP)
	assert.Equal(t, "/stream", p.Stream.HTTP.Path)
	assert.Nil(t, p.Stream.XHTTP)
}

func TestParseVLessWSPath(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  string
	}{
		{"already slashed", "path=%2Fws", "/ws"},
		{"bare", "path=ws", "/ws"},
		{"root", "path=%2F", "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse("vless://u@example.com:443?type=ws&" + tc.query)
			require.NoError(t, err)
			require.NotNil(t, p.Stream.WS)
			assert.Equal(t, tc.want, p.Stream.WS.Path)
		})
	}

	t.Run("no options at all", func(t *testing.T) {
		p, err := Parse("vless://u@example.com:443?type=ws")
		require.NoError(t, err)
		assert.Equal(t, NetworkWS, p.Stream.Network)
		assert.Nil(t, p.Stream.WS)
	})
}

func TestParseVLessH2(t *testing.T) {
	p, err := Parse("vless://u@example.com:443?type=h2&path=/h2&host=h.example.com")
	require.NoError(t, err)

	assert.Equal(t, NetworkH2, p.Stream.Network)
	require.NotNil(t, p.Stream.H2)
	assert.Equal(t, "/h2", p.Stream.H2.Path)
	assert.Equal(t, []string{"h.example.com"}, p.Stream.H2.Hosts)
}

func TestParseVLessAllowInsecure(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  bool
	}{
		{"absent", "", false},
		{"one", "&allowInsecure=1", true},
		{"zero", "&allowInsecure=0", false},
		{"word is not accepted", "&allowInsecure=true", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse("vless://u@example.com:443?security=tls" + tc.query)
			require.NoError(t, err)
			require.NotNil(t, p.Security)
			assert.Equal(t, tc.want, p.Security.TLS.AllowInsecure)
		})
	}
}

func TestParseVLessFingerprint(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  string
	}{
		{"known", "security=tls&fp=firefox", "firefox"},
		{"numeric vendor", "security=tls&fp=360", "360"},
		{"unknown falls back", "security=tls&fp=netscape", "chrome"},
		{"randomized", "security=tls&fp=randomized", "randomized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse("vless://u@example.com:443?" + tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Security.TLS.Fingerprint)
		})
	}

	t.Run("reality keeps unknown verbatim", func(t *testing.T) {
		p, err := Parse("vless://u@example.com:443?security=reality&fp=netscape")
		require.NoError(t, err)
		assert.Equal(t, "netscape", p.Security.Reality.Fingerprint)
	})
}

func TestParseVLessReality(t *testing.T) {
	p, err := Parse("vless://u@example.com:443?security=reality&sni=real.example.com&fp=chrome&pbk=PUBKEY&sid=0123ab&spx=%2F")
	require.NoError(t, err)

	require.NotNil(t, p.Security)
	assert.Equal(t, SecurityReality, p.Security.Mode)
	assert.Nil(t, p.Security.TLS)
	r := p.Security.Reality
	require.NotNil(t, r)
	assert.Equal(t, "real.example.com", r.ServerName)
	assert.Equal(t, "chrome", r.Fingerprint)
	assert.Equal(t, "PUBKEY", r.PublicKey)
	assert.Equal(t, "0123ab", r.ShortID)
	assert.Equal(t, "/", r.SpiderX)
}

func TestParseVLessFlow(t *testing.T) {
	p, err := Parse("vless://u@example.com:443?flow=xtls-rprx-vision")
	require.NoError(t, err)
	assert.Equal(t, "xtls-rprx-vision", p.Descriptor.Flow)
}

func TestParseVLessMissingFields(t *testing.T) {
	_, err := Parse("vless://@example.com:443")
	require.ErrorIs(t, err, ErrMissingRequiredField)
	assert.Contains(t, err.Error(), "uuid")

	_, err = Parse("vless://example.com:443")
	require.ErrorIs(t, err, ErrMissingRequiredField)

	_, err = Parse("vless://u@:443")
	require.ErrorIs(t, err, ErrMissingRequiredField)
	assert.Contains(t, err.Error(), "host")
}

func TestParseVLessBadPort(t *testing.T) {
	_, err := Parse("vless://u@example.com:notaport")
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = Parse("vless://u@example.com:99999")
	assert.ErrorIs(t, err, ErrInvalidNumericField)
}

func TestParseVLessUnsupportedNetwork(t *testing.T) {
	_, err := Parse("vless://u@example.com:443?type=grpc")
	require.ErrorIs(t, err, ErrUnsupportedNetworkType)
	assert.Contains(t, err.Error(), "grpc")
}

func TestParseVLessRemark(t *testing.T) {
	p, err := Parse("vless://u@example.com:443#My%20Server")
	require.NoError(t, err)
	assert.Equal(t, "My Server", p.Remark)
}

func TestParseKeepsRawURI(t *testing.T) {
	raw := "  " + demoVLess + "\n"
	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, demoVLess, p.RawURI)
}
