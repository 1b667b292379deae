package security

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ErrInvalidBlockRule is returned for block list entries that are neither an
// IP literal nor a CIDR range.
var ErrInvalidBlockRule = errors.New("invalid IP address or CIDR")

// BlockList is an immutable set of denied addresses and ranges.
type BlockList struct {
	addrs    map[netip.Addr]string
	prefixes []netip.Prefix
}

// ParseBlockRule validates a single IP or CIDR entry.
func ParseBlockRule(rule string) (netip.Prefix, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return netip.Prefix{}, ErrInvalidBlockRule
	}
	if strings.Contains(rule, "/") {
		p, err := netip.ParsePrefix(rule)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: %s", ErrInvalidBlockRule, rule)
		}
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(rule)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %s", ErrInvalidBlockRule, rule)
	}
	a = a.Unmap()
	return netip.PrefixFrom(a, a.BitLen()), nil
}

// NewBlockList builds a block list from IP literals and CIDR ranges. Invalid
// entries are rejected so a typo in config fails at startup.
func NewBlockList(rules []string) (*BlockList, error) {
	bl := &BlockList{addrs: make(map[netip.Addr]string)}
	for _, rule := range rules {
		if strings.TrimSpace(rule) == "" {
			continue
		}
		p, err := ParseBlockRule(rule)
		if err != nil {
			return nil, err
		}
		if p.IsSingleIP() {
			bl.addrs[p.Addr()] = strings.TrimSpace(rule)
			continue
		}
		bl.prefixes = append(bl.prefixes, p)
	}
	return bl, nil
}

// Len returns the number of rules in the list.
func (b *BlockList) Len() int {
	if b == nil {
		return 0
	}
	return len(b.addrs) + len(b.prefixes)
}

// Match reports whether ip is denied and which rule matched. An empty or
// unparsable ip is never blocked.
func (b *BlockList) Match(ip string) (string, bool) {
	if b == nil || ip == "" {
		return "", false
	}
	a, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", false
	}
	a = a.Unmap()
	if rule, ok := b.addrs[a]; ok {
		return rule, true
	}
	for _, p := range b.prefixes {
		if p.Contains(a) {
			return p.String(), true
		}
	}
	return "", false
}

// Blocked reports whether ip is denied.
func (b *BlockList) Blocked(ip string) bool {
	_, ok := b.Match(ip)
	return ok
}
