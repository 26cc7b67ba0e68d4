package kubo

import (
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/ipfs/go-cid"
	manet "github.com/multiformats/go-multiaddr/net"
)

// The node prints JSON when asked with --enc=json. Each Parse function falls
// back to the positional text format when the body is not JSON; the text
// contract is kept only for node builds that ignore --enc.

type keyListJSON struct {
	Keys []struct {
		Name string `json:"Name"`
		ID   string `json:"Id"`
	} `json:"Keys"`
}

type pinListJSON struct {
	Keys map[string]struct {
		Type string `json:"Type"`
	} `json:"Keys"`
}

type publishJSON struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// ParseKeys decodes `key list` output.
func ParseKeys(out []byte) ([]Key, error) {
	var decoded keyListJSON
	if err := json.Unmarshal(out, &decoded); err == nil {
		keys := make([]Key, 0, len(decoded.Keys))
		for _, k := range decoded.Keys {
			keys = append(keys, Key{Name: k.Name, ID: k.ID})
		}
		return keys, nil
	}

	// Text: one key name per line.
	var keys []Key
	for _, line := range strings.Split(string(out), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		keys = append(keys, Key{Name: name})
	}
	return keys, nil
}

// ParsePins decodes `pin ls --type=recursive` output into content roots.
// JSON results are sorted; text results keep line order.
func ParsePins(out []byte) ([]string, error) {
	var decoded pinListJSON
	if err := json.Unmarshal(out, &decoded); err == nil {
		pins := make([]string, 0, len(decoded.Keys))
		for root := range decoded.Keys {
			if _, err := cid.Decode(root); err != nil {
				return nil, fmt.Errorf("parse pin %q: %w", root, err)
			}
			pins = append(pins, root)
		}
		slices.Sort(pins)
		return pins, nil
	}

	// Text: "<cid> recursive" per line; the first token is the root.
	var pins []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if _, err := cid.Decode(fields[0]); err != nil {
			return nil, fmt.Errorf("parse pin %q: %w", fields[0], err)
		}
		pins = append(pins, fields[0])
	}
	return pins, nil
}

// ParseRoot decodes `add -Q` output, which is the bare root CID.
func ParseRoot(out []byte) (string, error) {
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", fmt.Errorf("parse content root: empty output")
	}
	if _, err := cid.Decode(root); err != nil {
		return "", fmt.Errorf("parse content root %q: %w", root, err)
	}
	return root, nil
}

// ParsePublished extracts the published name from `name publish` output.
//
// The text form is the confirmation line; its third whitespace token holds
// the name, e.g. "Published name: /ipns/k51abc.../" yields "k51abc...".
func ParsePublished(out []byte) (string, error) {
	var decoded publishJSON
	if err := json.Unmarshal(out, &decoded); err == nil && decoded.Name != "" {
		return lastSegment(decoded.Name), nil
	}

	fields := strings.Fields(string(out))
	if len(fields) < 3 {
		return "", fmt.Errorf("parse publish confirmation %q: too few fields", strings.TrimSpace(string(out)))
	}
	name := lastSegment(fields[2])
	if name == "" {
		return "", fmt.Errorf("parse publish confirmation %q: empty name", strings.TrimSpace(string(out)))
	}
	return name, nil
}

func lastSegment(s string) string {
	s = strings.TrimRight(s, "/:")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// ParseVersion returns the last token of `ipfs --version`, e.g.
// "ipfs version 0.29.0" yields "0.29.0".
func ParseVersion(out []byte) string {
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// Multiaddr renders an ip:port pair as a TCP multiaddr.
func Multiaddr(addr string) (string, error) {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w: %w", addr, errdefs.ErrInvalidArgument, err)
	}
	m, err := manet.FromNetAddr(net.TCPAddrFromAddrPort(ap))
	if err != nil {
		return "", fmt.Errorf("multiaddr for %q: %w", addr, err)
	}
	return m.String(), nil
}
