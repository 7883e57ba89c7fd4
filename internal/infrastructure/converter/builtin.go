package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/serjvanilla/go-overpass"
)

// Builtin converts Overpass JSON to GeoJSON in process. It needs the whole
// response in memory, unlike Subprocess.
type Builtin struct{}

func NewBuiltin() *Builtin {
	return &Builtin{}
}

func (b *Builtin) Name() string { return "builtin" }

func (b *Builtin) Check() error { return nil }

func (b *Builtin) Convert(ctx context.Context, src io.Reader, dst io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := decodeResult(src)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(toFeatureCollection(result))
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if _, err := dst.Write(data); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

// replayClient answers go-overpass's single request with an already fetched
// body; go-overpass only decodes responses through Client.Query.
type replayClient struct {
	body []byte
}

func (c *replayClient) Do(_ *http.Request) (*http.Response, error) {
	return c.response(), nil
}

func (c *replayClient) PostForm(_ string, _ url.Values) (*http.Response, error) {
	return c.response(), nil
}

func (c *replayClient) response() *http.Response {
	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(c.body)),
	}
}

func decodeResult(src io.Reader) (overpass.Result, error) {
	body, err := io.ReadAll(src)
	if err != nil {
		return overpass.Result{}, fmt.Errorf("read response: %w", err)
	}
	client := overpass.NewWithSettings("http://replay.invalid/api/interpreter", 1, &replayClient{body: body})
	result, err := client.Query("")
	if err != nil {
		return overpass.Result{}, fmt.Errorf("decode overpass response: %w", err)
	}
	return result, nil
}

func toFeatureCollection(result overpass.Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, id := range sortedIDs(result.Nodes) {
		node := result.Nodes[id]
		if len(node.Tags) == 0 {
			continue
		}
		fc.Append(newFeature("node", id, node.Tags, orb.Point{node.Lon, node.Lat}))
	}

	for _, id := range sortedIDs(result.Ways) {
		way := result.Ways[id]
		if len(way.Tags) == 0 {
			continue
		}
		if geom := wayGeometry(way); geom != nil {
			fc.Append(newFeature("way", id, way.Tags, geom))
		}
	}

	for _, id := range sortedIDs(result.Relations) {
		rel := result.Relations[id]
		if geom := relationGeometry(rel); geom != nil {
			fc.Append(newFeature("relation", id, rel.Tags, geom))
		}
	}

	return fc
}

func newFeature(kind string, id int64, tags map[string]string, geom orb.Geometry) *geojson.Feature {
	f := geojson.NewFeature(geom)
	ref := kind + "/" + strconv.FormatInt(id, 10)
	f.ID = ref
	for k, v := range tags {
		f.Properties[k] = v
	}
	f.Properties["id"] = ref
	return f
}

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func wayPoints(way *overpass.Way) []orb.Point {
	if way == nil {
		return nil
	}
	points := make([]orb.Point, 0, len(way.Nodes))
	for _, n := range way.Nodes {
		if n == nil {
			continue
		}
		points = append(points, orb.Point{n.Lon, n.Lat})
	}
	return points
}

func isClosed(points []orb.Point) bool {
	return len(points) >= 4 && points[0] == points[len(points)-1]
}

func wayGeometry(way *overpass.Way) orb.Geometry {
	points := wayPoints(way)
	if len(points) < 2 {
		return nil
	}
	if isClosed(points) && isArea(way.Tags) {
		return orb.Polygon{orb.Ring(points)}
	}
	return orb.LineString(points)
}

func relationGeometry(rel *overpass.Relation) orb.Geometry {
	switch rel.Tags["type"] {
	case "multipolygon", "boundary":
		return multipolygon(rel)
	default:
		var lines orb.MultiLineString
		for _, m := range rel.Members {
			if points := wayPoints(m.Way); len(points) >= 2 {
				lines = append(lines, orb.LineString(points))
			}
		}
		if len(lines) == 0 {
			return nil
		}
		return lines
	}
}

// multipolygon assembles closed member ways only; inner rings go to the first
// outer ring that contains their first vertex.
func multipolygon(rel *overpass.Relation) orb.Geometry {
	var outers, inners []orb.Ring
	for _, m := range rel.Members {
		points := wayPoints(m.Way)
		if !isClosed(points) {
			continue
		}
		if m.Role == "inner" {
			inners = append(inners, orb.Ring(points))
		} else {
			outers = append(outers, orb.Ring(points))
		}
	}
	if len(outers) == 0 {
		return nil
	}

	mp := make(orb.MultiPolygon, len(outers))
	for i, outer := range outers {
		mp[i] = orb.Polygon{outer}
	}
	for _, inner := range inners {
		for i := range mp {
			if planar.RingContains(mp[i][0], inner[0]) {
				mp[i] = append(mp[i], inner)
				break
			}
		}
	}
	return mp
}

var areaKeys = map[string]bool{
	"amenity":       true,
	"area:highway":  true,
	"building":      true,
	"building:part": true,
	"landcover":     true,
	"landuse":       true,
	"leisure":       true,
	"man_made":      true,
	"natural":       true,
	"place":         true,
	"playground":    true,
	"shop":          true,
	"tourism":       true,
}

var lineValues = map[string]bool{
	"leisure=slipway":         true,
	"leisure=track":           true,
	"man_made=breakwater":     true,
	"man_made=cutline":        true,
	"man_made=embankment":     true,
	"man_made=goods_conveyor": true,
	"man_made=groyne":         true,
	"man_made=pipeline":       true,
	"natural=arete":           true,
	"natural=cliff":           true,
	"natural=coastline":       true,
	"natural=ridge":           true,
	"natural=tree_row":        true,
}

func isArea(tags map[string]string) bool {
	switch tags["area"] {
	case "yes":
		return true
	case "no":
		return false
	}
	if tags["waterway"] == "riverbank" || tags["railway"] == "platform" || tags["highway"] == "platform" {
		return true
	}
	for k, v := range tags {
		if areaKeys[k] && !lineValues[k+"="+v] {
			return true
		}
	}
	return false
}
