package cltracking

import (
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
	"github.com/rs/zerolog/log"
)

// GeoLocator code pays ISO d'une IP, vide si inconnu
type GeoLocator interface {
	Country(ip string) string
}

type noGeo struct{}

func (noGeo) Country(string) string { return "" }

type geoReader struct {
	reader *geoip2.Reader
}

// OpenGeoIP ouvre la base mmdb, sans base aucune localisation n'est faite
func OpenGeoIP(path string) GeoLocator {
	if path == "" {
		return noGeo{}
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("base GeoIP indisponible")
		return noGeo{}
	}
	return &geoReader{reader: reader}
}

func (g *geoReader) Country(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	record, err := g.reader.Country(addr)
	if err != nil || record == nil {
		return ""
	}
	return record.Country.ISOCode
}
