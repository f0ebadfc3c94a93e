package security

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"sync/atomic"
)

// probeMarkers never appear in a fintrack URL; a request carrying one is a scan.
var probeMarkers = []string{
	"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", "etc/passwd", "cmd.exe",
	"<script", "javascript:", "eval(", "union select",
}

var scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab"}

var oddMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

const (
	maxURLLength = 2048
	maxProxyHops = 6
)

type DetectionMetrics struct {
	SuspiciousRequests int64
	BlockedRequests    int64
}

// Detector flags scanner traffic and resolves the client address behind trusted proxies.
type Detector struct {
	trusted    []netip.Prefix
	suspicious atomic.Int64
	blocked    atomic.Int64
}

// NewDetector trusts loopback and the private ranges as proxies.
func NewDetector() *Detector {
	d := &Detector{}
	for _, p := range []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		d.trusted = append(d.trusted, netip.MustParsePrefix(p))
	}
	return d
}

// AddTrustedProxy must be called before the detector serves requests.
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("trusted proxy %q: %w", cidr, err)
	}
	d.trusted = append(d.trusted, p.Masked())
	return nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Inspect classifies a request. A probe asks for something this app never
// serves and is also counted as suspicious.
func (d *Detector) Inspect(r *http.Request) (suspicious, probe bool) {
	target := strings.ToLower(r.URL.Path) + "?" + strings.ToLower(r.URL.RawQuery)
	probe = containsAny(target, probeMarkers)

	suspicious = probe ||
		containsAny(strings.ToLower(r.UserAgent()), scannerAgents) ||
		slices.Contains(oddMethods, r.Method) ||
		len(r.URL.String()) > maxURLLength ||
		strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxProxyHops

	if suspicious {
		d.suspicious.Add(1)
	}
	return suspicious, probe
}

// Middleware logs suspicious requests and answers probes with 404.
func (d *Detector) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			suspicious, probe := d.Inspect(r)
			if suspicious {
				logger.WarnContext(r.Context(), "Suspicious request",
					"client_ip", d.ExtractClientIP(r),
					"method", r.Method,
					"path", r.URL.Path,
					"user_agent", r.UserAgent(),
					"blocked", probe)
			}
			if probe {
				d.blocked.Add(1)
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ExtractClientIP returns the peer address, or the forwarded client address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if ap, err := netip.ParseAddrPort(peer); err == nil {
		peer = ap.Addr().Unmap().String()
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !d.isTrusted(addr) {
		return peer
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		if a, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return a.String()
		}
	}
	return peer
}

func (d *Detector) isTrusted(addr netip.Addr) bool {
	for _, p := range d.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{SuspiciousRequests: d.suspicious.Load(), BlockedRequests: d.blocked.Load()}
}
