// Package hakohosts holds the default Hako-family primary and image
// hostname lists plus the default header set, grounded verbatim on
// original_source/python_legacy/lib/constants.py's DOMAINS/IMAGE_DOMAINS/
// HEADERS. These are plain data, injected into network.Config by the CLI
// layer rather than hardcoded into the fabric, per spec §9's note that
// singleton-style constants must stay injectable for tests.
package hakohosts

// DefaultPrimaryHosts lists the Hako/docln domains the Network Fabric
// treats as primary targets, preferred-first.
var DefaultPrimaryHosts = []string{"docln.net", "ln.hako.vn", "docln.sbs"}

// DefaultImageHosts lists the CDN hosts used for chapter and cover images.
var DefaultImageHosts = []string{
	"i.hako.vip",
	"i.docln.net",
	"i2.docln.net",
	"i2.hako.vip",
	"i3.hako.vip",
}

// DefaultHeaders is the header set sent with every fetch absent overrides.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Referer":    "https://docln.net/",
	}
}
