package probe

import (
	"os"
	"testing"

	"github.com/ramohamadh/V2rayClient/internal/config"
	"github.com/ramohamadh/V2rayClient/internal/logger"
	"github.com/ramohamadh/V2rayClient/internal/v2ray/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop().Sugar()
	os.Exit(m.Run())
}

func testProber() *Prober {
	return New(config.ProbeConfig{
		TimeoutSeconds: 1,
		TestURL:        "https://www.google.com/generate_204",
		Concurrency:    2,
	})
}

func TestGetFreePorts(t *testing.T) {
	ports, err := GetFreePorts(3)
	require.NoError(t, err)
	require.Len(t, ports, 3)

	seen := make(map[int]bool)
	for _, p := range ports {
		assert.Greater(t, p, 0)
		assert.False(t, seen[p], "port %d handed out twice", p)
		seen[p] = true
	}
}

func TestOutboundConf(t *testing.T) {
	link := "vless://11111111-2222-3333-4444-555555555555@cdn.example.com:443" +
		"?security=tls&sni=cdn.example.com&fp=chrome&type=ws&path=%2Ftunnel#probe"

	out, err := outboundConf(link)
	require.NoError(t, err)

	assert.Equal(t, "vless", out.Protocol)
	require.NotNil(t, out.Settings)

	require.NotNil(t, out.StreamSetting)
	require.NotNil(t, out.StreamSetting.Network)
	assert.Equal(t, "ws", string(*out.StreamSetting.Network))
	assert.Equal(t, "tls", out.StreamSetting.Security)
	require.NotNil(t, out.StreamSetting.TLSSettings)
	assert.Equal(t, "cdn.example.com", out.StreamSetting.TLSSettings.ServerName)
}

func TestOutboundConfRejectsGarbage(t *testing.T) {
	_, err := outboundConf("ftp://nope.example.com")
	assert.ErrorIs(t, err, parser.ErrUnsupportedScheme)

	_, err = outboundConf("vmess://!!!not-base64!!!")
	assert.ErrorIs(t, err, parser.ErrMalformedPayload)
}

func TestCheckReportsUnusableLink(t *testing.T) {
	res := testProber().Check("vmess://!!!not-base64!!!")
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, parser.ErrMalformedPayload)
	assert.Zero(t, res.Latency)
}

func TestCheckAllPreservesOrder(t *testing.T) {
	links := []string{
		"vmess://!!!first!!!",
		"ftp://second.example.com",
		"vmess://!!!third!!!",
	}

	var seen []string
	results := testProber().CheckAll(links, func(r Result) {
		seen = append(seen, r.Link)
	})

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, links[i], r.Link)
		assert.Error(t, r.Err)
	}
	assert.Equal(t, links, seen)
}
