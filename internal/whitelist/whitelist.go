// Package whitelist decides which senders are never treated as junk.
package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker holds the not-junk override: explicit addresses from the store
// plus whole domains from configuration
type Checker struct {
	domains   []string
	addresses map[string]bool
	logger    *zap.Logger
}

// NewChecker creates a checker for the configured domains
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		d := strings.ToLower(strings.TrimSpace(domain))
		if d != "" {
			normalizedDomains = append(normalizedDomains, strings.TrimPrefix(d, "@"))
		}
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized not-junk checker", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains:   normalizedDomains,
		addresses: map[string]bool{},
		logger:    logger,
	}
}

// WithAddresses returns a checker that also accepts the given addresses.
// The receiver is left unchanged so a pass can load a fresh list each time.
func (c *Checker) WithAddresses(addrs []string) *Checker {
	set := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			set[a] = true
		}
	}
	return &Checker{domains: c.domains, addresses: set, logger: c.logger}
}

// IsNotJunk reports whether the sender address is overridden as not junk
func (c *Checker) IsNotJunk(from string) bool {
	addr := strings.ToLower(strings.TrimSpace(from))
	if c.addresses[addr] {
		return true
	}
	if len(c.domains) == 0 {
		return false
	}

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return false
	}
	domain := parts[1]

	for _, whitelisted := range c.domains {
		if whitelisted == domain {
			if c.logger != nil {
				c.logger.Debug("Domain is whitelisted",
					zap.String("domain", domain),
					zap.String("sender", from))
			}
			return true
		}
	}
	return false
}
