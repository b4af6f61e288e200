package probe

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/ramohamadh/V2rayClient/internal/logger"
	"github.com/ramohamadh/V2rayClient/internal/v2ray"
	"github.com/ramohamadh/V2rayClient/internal/v2ray/parser"

	"github.com/xtls/xray-core/core"
	"github.com/xtls/xray-core/infra/conf"

	// Import distro to register all protocols/transports
	_ "github.com/xtls/xray-core/main/distro/all"
)

// startBatch boots a single embedded instance hosting one socks inbound per
// usable link, each routed to its own outbound. Links that fail to parse or
// build are reported in skipped instead of aborting the batch. When no link
// is usable the instance is nil and err stays nil; the caller decides whether
// that is fatal.
func startBatch(links []string) (portMap map[string]int, skipped map[string]error, instance *core.Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("CRITICAL: Xray core panic recovered: %v", r)
			err = fmt.Errorf("xray core panic: %v", r)
			if instance != nil {
				instance.Close()
				instance = nil
			}
		}
	}()

	skipped = make(map[string]error)

	var valid []string
	var outbounds []conf.OutboundDetourConfig
	for _, link := range links {
		out, convErr := outboundConf(link)
		if convErr != nil {
			logger.Log.Debugf("Skipping unusable link: %v", convErr)
			skipped[link] = convErr
			continue
		}

		var buildErr error
		func() {
			restore := muteCore()
			defer restore()
			_, buildErr = out.Build()
		}()
		if buildErr != nil {
			logger.Log.Debugf("Skipping unbuildable link: %v", buildErr)
			skipped[link] = fmt.Errorf("failed to build outbound: %w", buildErr)
			continue
		}

		valid = append(valid, link)
		outbounds = append(outbounds, *out)
	}

	if len(valid) == 0 {
		return nil, skipped, nil, nil
	}

	ports, err := GetFreePorts(len(valid))
	if err != nil {
		return nil, skipped, nil, err
	}

	var inbounds []conf.InboundDetourConfig
	var rules []json.RawMessage
	portMap = make(map[string]int, len(valid))

	for i, link := range valid {
		port := ports[i]
		tagIn := fmt.Sprintf("in_%d", i)
		tagOut := fmt.Sprintf("out_%d", i)

		outbounds[i].Tag = tagOut

		inbounds = append(inbounds, conf.InboundDetourConfig{
			Tag:      tagIn,
			Protocol: "socks",
			PortList: &conf.PortList{Range: []conf.PortRange{{From: uint32(port), To: uint32(port)}}},
			Settings: rawMessagePtr(`{"auth": "noauth", "udp": true}`),
			ListenOn: toAddress("127.0.0.1"),
		})

		rule, _ := json.Marshal(map[string]interface{}{
			"type":        "field",
			"inboundTag":  []string{tagIn},
			"outboundTag": tagOut,
		})
		rules = append(rules, json.RawMessage(rule))

		portMap[link] = port
	}

	pbConfig, err := (&conf.Config{
		LogConfig: &conf.LogConfig{
			LogLevel:  "none",
			AccessLog: "none",
			ErrorLog:  "none",
			DNSLog:    false,
		},
		InboundConfigs:  inbounds,
		OutboundConfigs: outbounds,
		RouterConfig: &conf.RouterConfig{
			RuleList: rules,
		},
	}).Build()
	if err != nil {
		return nil, skipped, nil, err
	}

	func() {
		restore := muteCore()
		defer restore()
		instance, err = core.New(pbConfig)
		if err == nil {
			err = instance.Start()
		}
	}()
	if err != nil {
		return nil, skipped, nil, err
	}

	return portMap, skipped, instance, nil
}

// outboundConf renders a share link as an outbound the embedded core can
// load. The assembled outbound marshals to the same JSON shape the config
// loader reads, so the conversion is a plain decode of that JSON.
func outboundConf(link string) (*conf.OutboundDetourConfig, error) {
	p, err := parser.Parse(link)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(v2ray.Assemble(p))
	if err != nil {
		return nil, fmt.Errorf("failed to encode outbound: %w", err)
	}

	var out conf.OutboundDetourConfig
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to convert outbound: %w", err)
	}
	return &out, nil
}

func GetFreePorts(count int) ([]int, error) {
	var listeners []net.Listener
	var ports []int

	for i := 0; i < count; i++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return nil, fmt.Errorf("failed to allocate ports: %w", err)
		}
		listeners = append(listeners, l)
		ports = append(ports, l.Addr().(*net.TCPAddr).Port)
	}

	for _, l := range listeners {
		l.Close()
	}

	return ports, nil
}

func toAddress(s string) *conf.Address {
	var addr conf.Address
	_ = json.Unmarshal([]byte(fmt.Sprintf("%q", s)), &addr)
	return &addr
}

func rawMessagePtr(s string) *json.RawMessage {
	msg := json.RawMessage(s)
	return &msg
}

// muteCore silences the core's direct writes to stdout/stderr so probe
// output and progress bars stay readable.
func muteCore() func() {
	origStdout := os.Stdout
	origStderr := os.Stderr

	devNull, _ := os.Open(os.DevNull)
	if devNull != nil {
		os.Stdout = devNull
		os.Stderr = devNull
	}

	return func() {
		os.Stdout = origStdout
		os.Stderr = origStderr
		if devNull != nil {
			devNull.Close()
		}
	}
}
