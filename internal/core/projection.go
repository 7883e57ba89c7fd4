package core

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

// projection maps geographic degrees to a CRS's native units and back.
type projection interface {
	forward(lon, lat float64) (x, y float64, err error)
	inverse(x, y float64) (lon, lat float64, err error)
}

// maxMercatorLat is the latitude at which web mercator becomes a square world.
const maxMercatorLat = 85.0511287798

var epsg = wgs84.EPSG()

func lookupProjection(c model.CRS) (projection, error) {
	switch code := c.Code; {
	case code == 4326 || code == 4258:
		return geographic{}, nil
	case code == 3857 || code == 900913:
		return webMercator{}, nil
	}
	if zone, ok := utmZone(c.Code); ok {
		return newUTM(c.Code, zone), nil
	}
	return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedCRS, c)
}

func utmZone(code int) (int, bool) {
	switch {
	case code >= 32601 && code <= 32660:
		return code - 32600, true
	case code >= 32701 && code <= 32760:
		return code - 32700, true
	case code >= 25828 && code <= 25838:
		return code - 25800, true
	}
	return 0, false
}

// zoneReach is how far from its central meridian a box may sit and still be
// plausible for a UTM zone: the zone's half width plus one neighbor.
const zoneReach = 9.0

// LooksLatLonOrdered reports whether box is implausible for a UTM zone as
// [min_lon, min_lat, max_lon, max_lat] but fits it when read as
// [south, west, north, east]. Other CRSs always report false.
func LooksLatLonOrdered(box model.BoundingBox, c model.CRS) bool {
	zone, ok := utmZone(c.Code)
	if !ok {
		return false
	}
	lon0 := float64(zone*6 - 183)
	lon := (box.MinLon + box.MaxLon) / 2
	swapped := (box.MinLat + box.MaxLat) / 2
	return math.Abs(normalizeDegrees(lon-lon0)) > zoneReach &&
		math.Abs(normalizeDegrees(swapped-lon0)) <= zoneReach
}

type geographic struct{}

func (geographic) forward(lon, lat float64) (float64, float64, error) {
	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	return lon, lat, nil
}

func (geographic) inverse(x, y float64) (float64, float64, error) {
	if err := checkLonLat(x, y); err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

type webMercator struct{}

func (webMercator) forward(lon, lat float64) (float64, float64, error) {
	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	if math.Abs(lat) > maxMercatorLat {
		return 0, 0, fmt.Errorf("%w: latitude %v beyond web mercator limit", model.ErrUndefinedTransform, lat)
	}
	p := project.WGS84.ToMercator(orb.Point{lon, lat})
	return p[0], p[1], checkFinite(p[0], p[1])
}

func (webMercator) inverse(x, y float64) (float64, float64, error) {
	if err := checkFinite(x, y); err != nil {
		return 0, 0, err
	}
	p := project.Mercator.ToWGS84(orb.Point{x, y})
	if err := checkLonLat(p[0], p[1]); err != nil {
		return 0, 0, err
	}
	return p[0], p[1], nil
}

// utm is a transverse mercator zone from the EPSG registry.
type utm struct {
	lon0     float64 // central meridian, degrees
	toGrid   wgs84.Func
	toLonLat wgs84.Func
}

func newUTM(code, zone int) *utm {
	crs := epsg.Code(code)
	return &utm{
		lon0:     float64(zone*6 - 183),
		toGrid:   wgs84.Transform(wgs84.LonLat(), crs),
		toLonLat: wgs84.Transform(crs, wgs84.LonLat()),
	}
}

func (p *utm) forward(lon, lat float64) (float64, float64, error) {
	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	if math.Abs(normalizeDegrees(lon-p.lon0)) >= 90 {
		return 0, 0, fmt.Errorf("%w: longitude %v is 90 degrees or more from the central meridian", model.ErrUndefinedTransform, lon)
	}
	x, y, _ := p.toGrid(lon, lat, 0)
	return x, y, checkFinite(x, y)
}

// inverseSteps bounds the Newton refinement of the inverse.
const inverseSteps = 4

// inverse starts from the registry's inverse series, which is only good to a
// few meters away from the central meridian, and refines it with Newton steps
// against forward until both directions agree.
func (p *utm) inverse(x, y float64) (float64, float64, error) {
	if err := checkFinite(x, y); err != nil {
		return 0, 0, err
	}
	lon, lat, _ := p.toLonLat(x, y, 0)
	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}

	const h = 1e-6
	for i := 0; i < inverseSteps; i++ {
		fx, fy, err := p.forward(lon, lat)
		if err != nil {
			return 0, 0, err
		}
		dx, dy := x-fx, y-fy
		if math.Abs(dx) < 1e-6 && math.Abs(dy) < 1e-6 {
			break
		}
		ex, ey, _ := p.toGrid(lon+h, lat, 0)
		nx, ny, _ := p.toGrid(lon, lat+h, 0)
		a, b := (ex-fx)/h, (nx-fx)/h
		c, d := (ey-fy)/h, (ny-fy)/h
		det := a*d - b*c
		if det == 0 || math.IsNaN(det) {
			return 0, 0, fmt.Errorf("%w: singular grid at (%v, %v)", model.ErrUndefinedTransform, x, y)
		}
		lon += (d*dx - b*dy) / det
		lat += (a*dy - c*dx) / det
	}

	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	return lon, lat, nil
}

func normalizeDegrees(v float64) float64 {
	for v > 180 {
		v -= 360
	}
	for v < -180 {
		v += 360
	}
	return v
}

func checkLonLat(lon, lat float64) error {
	if err := checkFinite(lon, lat); err != nil {
		return err
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: (%v, %v) is not a geographic coordinate", model.ErrUndefinedTransform, lon, lat)
	}
	return nil
}

func checkFinite(vs ...float64) error {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite result", model.ErrUndefinedTransform)
		}
	}
	return nil
}
