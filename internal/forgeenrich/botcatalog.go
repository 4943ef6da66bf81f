package forgeenrich

import (
	"bufio"
	"os"
	"strings"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
)

// botCatalog matches a user-agent string against a flat list of
// crawler/bot substrings: the built-in entries below plus any loaded from
// disk at startup, one per line. A missing or empty catalog file is not an
// error; matching then uses the built-in entries only, in keeping with the
// rest of Tier 1's tolerant-of-missing-data contract.
type botCatalog struct {
	entries []botEntry
}

type botEntry struct {
	substr string
	name   string
}

var builtinBots = []botEntry{
	{"googlebot", "Googlebot"},
	{"bingbot", "Bingbot"},
	{"duckduckbot", "DuckDuckBot"},
	{"baiduspider", "Baiduspider"},
	{"yandexbot", "YandexBot"},
	{"facebookexternalhit", "FacebookBot"},
	{"twitterbot", "Twitterbot"},
	{"linkedinbot", "LinkedInBot"},
	{"slackbot", "Slackbot"},
	{"whatsapp", "WhatsApp"},
	{"telegrambot", "TelegramBot"},
	{"ahrefsbot", "AhrefsBot"},
	{"semrushbot", "SemrushBot"},
	{"mj12bot", "MJ12bot"},
	{"dotbot", "DotBot"},
	{"python-requests", "python-requests"},
	{"curl/", "curl"},
	{"wget/", "wget"},
	{"headlesschrome", "HeadlessChrome"},
	{"phantomjs", "PhantomJS"},
	{"puppeteer", "Puppeteer"},
	{"selenium", "Selenium"},
	{"go-http-client", "go-http-client"},
	{"scrapy", "Scrapy"},
	{"bot.htm", "generic-bot-tag"},
}

func loadBotCatalog(lg *galog.Logger, path string) *botCatalog {
	c := &botCatalog{entries: append([]botEntry(nil), builtinBots...)}
	if path == "" {
		return c
	}
	f, err := os.Open(path)
	if err != nil {
		if lg != nil {
			lg.Warn("bot catalog file unavailable, using built-in catalog only", galog.KV("path", path), galog.KVErr(err))
		}
		return c
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		substr := strings.ToLower(strings.TrimSpace(parts[0]))
		name := substr
		if len(parts) == 2 {
			name = strings.TrimSpace(parts[1])
		}
		c.entries = append(c.entries, botEntry{substr: substr, name: name})
	}
	return c
}

// Match reports the first catalog entry whose substring appears in ua
// (case-insensitive).
func (c *botCatalog) Match(ua string) (name string, ok bool) {
	if ua == "" {
		return "", false
	}
	lower := strings.ToLower(ua)
	for _, e := range c.entries {
		if strings.Contains(lower, e.substr) {
			return e.name, true
		}
	}
	return "", false
}
