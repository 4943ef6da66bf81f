package forgeenrich

import (
	"fmt"

	"github.com/ua-parser/uap-go/uaparser"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
)

// uaParser wraps ua-parser's two-pass (browser+OS, then device) client
// parser behind the narrow result shape Tier 1 needs.
type uaParser struct {
	parser *uaparser.Parser
	lg     *galog.Logger
}

func newUAParser(lg *galog.Logger) *uaParser {
	return &uaParser{parser: uaparser.NewFromSaved(), lg: lg}
}

type uaResult struct {
	Browser     string
	BrowserVer  string
	OS          string
	OSVer       string
	DeviceType  string
	DeviceModel string
	DeviceBrand string
}

func (p *uaParser) Parse(ua string) uaResult {
	if ua == "" || p.parser == nil {
		return uaResult{}
	}
	client := p.parser.Parse(ua)
	var res uaResult
	if client.UserAgent != nil {
		res.Browser = client.UserAgent.Family
		res.BrowserVer = versionString(client.UserAgent.Major, client.UserAgent.Minor, client.UserAgent.Patch)
	}
	if client.Os != nil {
		res.OS = client.Os.Family
		res.OSVer = versionString(client.Os.Major, client.Os.Minor, client.Os.Patch)
	}
	if client.Device != nil {
		res.DeviceModel = client.Device.Model
		res.DeviceBrand = client.Device.Brand
		res.DeviceType = deviceType(client.Device.Family, res.OS)
	}
	return res
}

func versionString(major, minor, patch string) string {
	switch {
	case major == "":
		return ""
	case minor == "":
		return major
	case patch == "":
		return fmt.Sprintf("%s.%s", major, minor)
	default:
		return fmt.Sprintf("%s.%s.%s", major, minor, patch)
	}
}

// deviceType collapses the device family string into the coarse
// categories the query-string contract uses.
func deviceType(family, os string) string {
	switch family {
	case "", "Other":
		switch os {
		case "iOS", "Android":
			return "mobile"
		default:
			return "desktop"
		}
	case "Spider":
		return "bot"
	default:
		return "mobile"
	}
}
