package parser

import (
	"fmt"
	"net/url"
	"strings"
)

// buildVMessStream assembles the transport profile from a legacy vmess
// payload. Only called when the payload names a network.
func buildVMessStream(v *vmessJSON) (*StreamProfile, error) {
	stream := &StreamProfile{Network: Network(v.Net)}

	switch stream.Network {
	case NetworkWS:
		if v.Path != "" || v.Host != "" {
			stream.WS = &WSSettings{Path: v.Path, Host: v.Host}
		}
	case NetworkH2:
		if v.Path != "" || v.Host != "" {
			h2 := &H2Settings{Path: v.Path}
			if v.Host != "" {
				h2.Hosts = []string{v.Host}
			}
			stream.H2 = h2
		}
	case NetworkTCP:
		// The disguise block exists whenever type is http, even with no
		// path or host to fill it.
		if v.Type == "http" {
			tcp := &TCPSettings{}
			if v.Path != "" {
				tcp.Paths = []string{v.Path}
			}
			if v.Host != "" {
				tcp.Hosts = []string{v.Host}
			}
			stream.TCP = tcp
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetworkType, v.Net)
	}
	return stream, nil
}

// buildVLessStream assembles the transport profile from vless query
// parameters. The network tag defaults to tcp and xhttp rides plain http.
func buildVLessStream(q url.Values) (*StreamProfile, error) {
	network := q.Get("type")
	if network == "" {
		network = "tcp"
	}
	if network == "xhttp" {
		network = "http"
	}

	stream := &StreamProfile{Network: Network(network)}
	switch stream.Network {
	case NetworkTCP:
		// URI form carries no disguise header for raw TCP.
	case NetworkWS:
		ws := &WSSettings{}
		if path := q.Get("path"); path != "" {
			ws.Path = normalizeWSPath(path)
		}
		if host := q.Get("host"); host != "" {
			ws.Host = host
		}
		if ws.Path != "" || ws.Host != "" {
			stream.WS = ws
		}
	case NetworkH2:
		h2 := &H2Settings{}
		if path := q.Get("path"); path != "" {
			h2.Path = path
		}
		if host := q.Get("host"); host != "" {
			h2.Hosts = []string{host}
		}
		if h2.Path != "" || len(h2.Hosts) > 0 {
			stream.H2 = h2
		}
	case NetworkHTTP:
		httpSettings := &HTTPSettings{}
		if path := q.Get("path"); path != "" {
			httpSettings.Path = path
		}
		if host := q.Get("host"); host != "" {
			httpSettings.Hosts = []string{host}
		}
		if httpSettings.Path != "" || len(httpSettings.Hosts) > 0 {
			stream.HTTP = httpSettings
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetworkType, network)
	}
	return stream, nil
}

// normalizeWSPath guarantees exactly one leading slash.
func normalizeWSPath(path string) string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "/"
	}
	return "/" + path
}
