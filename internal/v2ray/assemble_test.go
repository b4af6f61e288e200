package v2ray

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramohamadh/V2rayClient/internal/v2ray/parser"
)

func vmessLink(t *testing.T, fields map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return "vmess://" + base64.StdEncoding.EncodeToString(data)
}

func parseLink(t *testing.T, link string) *parser.Profile {
	t.Helper()
	p, err := parser.Parse(link)
	require.NoError(t, err)
	return p
}

func TestAssembleVMess(t *testing.T) {
	p := parseLink(t, vmessLink(t, map[string]interface{}{
		"add":  "vm.example.com",
		"port": "443",
		"id":   "user-id",
		"aid":  "2",
		"scy":  "aes-128-gcm",
		"net":  "ws",
		"path": "/ws",
		"host": "cdn.example.com",
		"tls":  "tls",
		"sni":  "sni.example.com",
	}))

	ob := Assemble(p)
	assert.Equal(t, "vmess", ob.Protocol)
	assert.Empty(t, ob.Tag)

	var settings VnextSettings
	require.NoError(t, json.Unmarshal(ob.Settings, &settings))
	require.Len(t, settings.Vnext, 1)
	server := settings.Vnext[0]
	assert.Equal(t, "vm.example.com", server.Address)
	assert.Equal(t, 443, server.Port)
	require.Len(t, server.Users, 1)
	user := server.Users[0]
	assert.Equal(t, "user-id", user.ID)
	require.NotNil(t, user.AlterID)
	assert.Equal(t, 2, *user.AlterID)
	assert.Equal(t, "aes-128-gcm", user.Security)
	assert.Empty(t, user.Encryption)

	ss := ob.StreamSettings
	require.NotNil(t, ss)
	assert.Equal(t, "ws", ss.Network)
	assert.Equal(t, "tls", ss.Security)
	require.NotNil(t, ss.WSSettings)
	assert.Equal(t, "/ws", ss.WSSettings.Path)
	assert.Equal(t, map[string]string{"Host": "cdn.example.com"}, ss.WSSettings.Headers)
	require.NotNil(t, ss.TLSSettings)
	assert.Equal(t, "sni.example.com", ss.TLSSettings.ServerName)
	assert.True(t, ss.TLSSettings.AllowInsecure)
}

func TestAssembleVMessAlterIDZeroKept(t *testing.T) {
	p := parseLink(t, vmessLink(t, map[string]interface{}{
		"add": "vm.example.com", "port": "443", "id": "user-id",
	}))

	data, err := json.Marshal(Assemble(p))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"alterId":0`)
	assert.NotContains(t, string(data), "streamSettings")
}

func TestAssembleVLess(t *testing.T) {
	p := parseLink(t, "vless://user-id@vl.example.com:8443?encryption=none&flow=xtls-rprx-vision&type=ws&path=%2Fws&security=tls&sni=vl.example.com")

	ob := Assemble(p)
	assert.Equal(t, "vless", ob.Protocol)

	var settings VnextSettings
	require.NoError(t, json.Unmarshal(ob.Settings, &settings))
	user := settings.Vnext[0].Users[0]
	assert.Equal(t, "none", user.Encryption)
	assert.Equal(t, "xtls-rprx-vision", user.Flow)
	assert.Nil(t, user.AlterID)

	require.NotNil(t, ob.StreamSettings)
	assert.Equal(t, "ws", ob.StreamSettings.Network)
	require.NotNil(t, ob.StreamSettings.TLSSettings)
	assert.False(t, ob.StreamSettings.TLSSettings.AllowInsecure)
}

func TestAssembleVLessEmptyFlowOmitted(t *testing.T) {
	p := parseLink(t, "vless://user-id@vl.example.com:443")

	data, err := json.Marshal(Assemble(p))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"flow"`)
	assert.Contains(t, string(data), `"network":"tcp"`)
}

func TestAssembleWireShapes(t *testing.T) {
	t.Run("h2 shares the http block", func(t *testing.T) {
		p := parseLink(t, "vless://u@example.com:443?type=h2&path=%2Fh2&host=h.example.com")
		ss := Assemble(p).StreamSettings
		require.NotNil(t, ss.HTTPSettings)
		assert.Equal(t, "/h2", ss.HTTPSettings.Path)
		assert.Equal(t, []string{"h.example.com"}, ss.HTTPSettings.Host)
		assert.Nil(t, ss.WSSettings)
	})

	t.Run("tcp disguise", func(t *testing.T) {
		p := parseLink(t, vmessLink(t, map[string]interface{}{
			"add": "vm.example.com", "port": "80", "id": "u",
			"net": "tcp", "type": "http", "path": "/front", "host": "front.example.com",
		}))
		ss := Assemble(p).StreamSettings
		require.NotNil(t, ss.TCPSettings)
		assert.Equal(t, "http", ss.TCPSettings.Type)
		require.NotNil(t, ss.TCPSettings.HTTPSettings)
		assert.Equal(t, []string{"/front"}, ss.TCPSettings.HTTPSettings.Path)
		assert.Equal(t, []string{"front.example.com"}, ss.TCPSettings.HTTPSettings.Host)
	})

	t.Run("bare disguise keeps only the type", func(t *testing.T) {
		p := parseLink(t, vmessLink(t, map[string]interface{}{
			"add": "vm.example.com", "port": "80", "id": "u",
			"net": "tcp", "type": "http",
		}))
		ss := Assemble(p).StreamSettings
		require.NotNil(t, ss.TCPSettings)
		assert.Equal(t, "http", ss.TCPSettings.Type)
		assert.Nil(t, ss.TCPSettings.HTTPSettings)
	})

	t.Run("xhttp built directly", func(t *testing.T) {
		p := &parser.Profile{
			Descriptor: parser.Descriptor{
				Protocol: parser.ProtocolVLess,
				Address:  "x.example.com",
				Port:     443,
				ID:       "u",
			},
			Stream: &parser.StreamProfile{
				Network: parser.NetworkXHTTP,
				XHTTP:   &parser.XHTTPSettings{Path: "/xh"},
			},
		}
		data, err := json.Marshal(Assemble(p))
		require.NoError(t, err)
		assert.Contains(t, string(data), `"xhttpSettings":{"path":"/xh"}`)
	})

	t.Run("reality", func(t *testing.T) {
		p := parseLink(t, "vless://u@example.com:443?security=reality&sni=real.example.com&pbk=KEY&sid=01ab&spx=%2F&fp=chrome")
		ss := Assemble(p).StreamSettings
		assert.Equal(t, "reality", ss.Security)
		require.NotNil(t, ss.RealitySettings)
		assert.Equal(t, "KEY", ss.RealitySettings.PublicKey)
		assert.Equal(t, "01ab", ss.RealitySettings.ShortID)
		assert.Equal(t, "/", ss.RealitySettings.SpiderX)
		assert.Nil(t, ss.TLSSettings)
	})
}

func TestAssembleVnextRoundTrip(t *testing.T) {
	link := vmessLink(t, map[string]interface{}{
		"add": "rt.example.com", "port": 2096, "id": "rt-id",
	})
	p := parseLink(t, link)

	data, err := json.Marshal(Assemble(p))
	require.NoError(t, err)

	var ob Outbound
	require.NoError(t, json.Unmarshal(data, &ob))
	var settings VnextSettings
	require.NoError(t, json.Unmarshal(ob.Settings, &settings))

	assert.Equal(t, p.Descriptor.Address, settings.Vnext[0].Address)
	assert.Equal(t, p.Descriptor.Port, settings.Vnext[0].Port)
	assert.Equal(t, p.Descriptor.ID, settings.Vnext[0].Users[0].ID)
}
