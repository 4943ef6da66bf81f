package forgeenrich

import (
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
)

const rdnsTimeout = 2 * time.Second

// cloudHostnamePatterns recognizes reverse-DNS names issued by the major
// clouds and a handful of well-known EU providers.
var cloudHostnamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.compute\.amazonaws\.com$`),
	regexp.MustCompile(`(?i)\.compute-1\.amazonaws\.com$`),
	regexp.MustCompile(`(?i)\.bc\.googleusercontent\.com$`),
	regexp.MustCompile(`(?i)\.googleusercontent\.com$`),
	regexp.MustCompile(`(?i)\.cloudapp\.azure\.com$`),
	regexp.MustCompile(`(?i)\.cloudapp\.net$`),
	regexp.MustCompile(`(?i)\.digitalocean\.com$`),
	regexp.MustCompile(`(?i)\.akamaitechnologies\.com$`),
	regexp.MustCompile(`(?i)\.akamaiedge\.net$`),
	regexp.MustCompile(`(?i)\.cloudflare\.com$`),
	regexp.MustCompile(`(?i)\.hetzner\.(com|cloud)$`),
	regexp.MustCompile(`(?i)\.ovh\.net$`),
	regexp.MustCompile(`(?i)\.scaleway\.com$`),
	regexp.MustCompile(`(?i)\.linode\.com$`),
	regexp.MustCompile(`(?i)\.vultr\.com$`),
}

type rdnsResolver struct {
	lg     *galog.Logger
	server string
	client *dns.Client
}

func newRDNSResolver(lg *galog.Logger, server string) *rdnsResolver {
	if server == "" {
		server = "8.8.8.8:53"
	}
	return &rdnsResolver{
		lg:     lg,
		server: server,
		client: &dns.Client{Timeout: rdnsTimeout},
	}
}

// Resolve performs a PTR lookup with a 2-second deadline and classifies
// the result against the cloud-hostname catalog.
func (r *rdnsResolver) Resolve(addr string) (hostname string, cloud bool, ok bool) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", false, false
	}
	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	m.RecursionDesired = true

	resp, _, err := r.client.Exchange(m, r.server)
	if err != nil || resp == nil || len(resp.Answer) == 0 {
		return "", false, false
	}
	for _, ans := range resp.Answer {
		if ptr, isPTR := ans.(*dns.PTR); isPTR {
			name := strings.TrimSuffix(ptr.Ptr, ".")
			return name, isCloudHostname(name), true
		}
	}
	return "", false, false
}

func isCloudHostname(name string) bool {
	for _, re := range cloudHostnamePatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
