package forgeenrich

import (
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

// offlineGeo wraps the bundled MaxMind-format City and ASN databases.
// Either or both may be unavailable; missing files are a startup
// warning, and lookups against a nil reader simply return not-found.
type offlineGeo struct {
	lg   *galog.Logger
	city *geoip2.Reader
	asn  *geoip2.Reader
}

func newOfflineGeo(lg *galog.Logger, cityPath, asnPath string) *offlineGeo {
	g := &offlineGeo{lg: lg}
	if cityPath != "" {
		if r, err := geoip2.Open(cityPath); err == nil {
			g.city = r
		} else if lg != nil {
			lg.Warn("geoip city database unavailable", galog.KV("path", cityPath), galog.KVErr(err))
		}
	}
	if asnPath != "" {
		if r, err := geoip2.Open(asnPath); err == nil {
			g.asn = r
		} else if lg != nil {
			lg.Warn("geoip asn database unavailable", galog.KV("path", asnPath), galog.KVErr(err))
		}
	}
	return g
}

func (g *offlineGeo) Lookup(addr string) (hit.GeoRecord, bool) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return hit.GeoRecord{}, false
	}
	var rec hit.GeoRecord
	found := false

	if g.city != nil {
		if city, err := g.city.City(ip); err == nil {
			found = true
			rec.Country = city.Country.Names["en"]
			rec.CountryCode = city.Country.IsoCode
			if len(city.Subdivisions) > 0 {
				rec.Region = city.Subdivisions[0].Names["en"]
			}
			rec.City = city.City.Names["en"]
			rec.PostalCode = city.Postal.Code
			rec.Latitude = city.Location.Latitude
			rec.Longitude = city.Location.Longitude
			rec.Timezone = city.Location.TimeZone
		}
	}
	if g.asn != nil {
		if asn, err := g.asn.ASN(ip); err == nil {
			found = true
			rec.ASN = asn.AutonomousSystemNumber
			rec.ASNOrg = asn.AutonomousSystemOrganization
		}
	}
	return rec, found
}
