// internal/requestinfo/requestinfo.go
//
// Per-request client metadata: a user-agent fingerprint and best-effort
// geolocation of the client address.
//
// Components never branch on these values.  They exist for logs, so an
// operator reading a failed submission can tell a bot hammering
// /tracks/new from a real browser.  Everything here is plain data and
// safe to log.
//
// Dependencies
//   • github.com/avct/uasurfer          (UA parsing)
//   • github.com/oschwald/geoip2-golang (MaxMind City lookup)

package requestinfo

import (
	"context"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
)

/*──────────────────────────── types ────────────────────────────────────────*/

// UA is the parsed User-Agent plus the preferred language.
type UA struct {
	Browser     string // "Chrome", "Firefox", ...
	OS          string // "macOS", "Windows", "Android", ...
	Device      string // "Desktop", "Phone", "Tablet", ...
	IsBot       bool
	PrimaryLang string // first Accept-Language tag, lower-cased
}

// Geo is empty apart from IP when no database is loaded or nothing matched.
type Geo struct {
	IP         net.IP
	CountryISO string
	City       string
}

// RequestInfo is attached to the request context by Enrich.
type RequestInfo struct {
	UA        UA
	Geo       Geo
	URL       *url.URL
	Timestamp time.Time
}

// Fields flattens the info into zap key/value pairs.  Nil-safe.
func (ri *RequestInfo) Fields() []any {
	if ri == nil {
		return nil
	}
	return []any{
		"ip", ri.Geo.IP.String(),
		"country", ri.Geo.CountryISO,
		"city", ri.Geo.City,
		"browser", ri.UA.Browser,
		"os", ri.UA.OS,
		"device", ri.UA.Device,
		"bot", ri.UA.IsBot,
		"lang", ri.UA.PrimaryLang,
	}
}

type ctxKey struct{}

// FromContext returns the info stored by Enrich, or nil.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

/*──────────────────────────── geo database ─────────────────────────────────*/

var geoReader atomic.Pointer[geoip2.Reader]

// InitGeo opens a GeoLite2-City database.  An empty path disables lookups.
// The returned func closes the reader.
func InitGeo(path string) (func() error, error) {
	if path == "" {
		return func() error { return nil }, nil
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	geoReader.Store(r)
	return func() error {
		geoReader.Store(nil)
		return r.Close()
	}, nil
}

func lookupGeo(ip net.IP) Geo {
	g := Geo{IP: ip}
	r := geoReader.Load()
	if r == nil || ip == nil {
		return g
	}
	if rec, err := r.City(ip); err == nil {
		g.CountryISO = rec.Country.IsoCode
		g.City = rec.City.Names["en"]
	}
	return g
}

/*──────────────────────────── user agent ───────────────────────────────────*/

var deviceNames = map[uasurfer.DeviceType]string{
	uasurfer.DeviceComputer: "Desktop",
	uasurfer.DevicePhone:    "Phone",
	uasurfer.DeviceTablet:   "Tablet",
	uasurfer.DeviceConsole:  "Console",
	uasurfer.DeviceWearable: "Wearable",
	uasurfer.DeviceTV:       "TV",
}

func parseUA(header, acceptLang string) UA {
	u := uasurfer.Parse(header)

	os := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if os == "MacOSX" {
		os = "macOS"
	}
	device, ok := deviceNames[u.DeviceType]
	if !ok {
		device = "Unknown"
	}
	return UA{
		Browser:     strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		OS:          os,
		Device:      device,
		IsBot:       u.IsBot(),
		PrimaryLang: primaryLang(acceptLang),
	}
}

// primaryLang returns the first tag, ignoring any ";q=" weight.
func primaryLang(al string) string {
	tag, _, _ := strings.Cut(al, ",")
	tag, _, _ = strings.Cut(strings.TrimSpace(tag), ";")
	return strings.ToLower(tag)
}
