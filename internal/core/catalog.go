package core

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

// Destination selects the directory tree a category is written into.
type Destination int

const (
	// LayerDestination writes <layers>/<name>/<name>.<ext>.
	LayerDestination Destination = iota
	// StreetParkingDestination writes <street parking>/data/<name>.<ext>.
	StreetParkingDestination
)

func (d Destination) String() string {
	switch d {
	case LayerDestination:
		return "layer"
	case StreetParkingDestination:
		return "street_parking"
	default:
		return fmt.Sprintf("destination(%d)", int(d))
	}
}

type CatalogEntry struct {
	Name        string
	Destination Destination
	Query       string
}

// CatalogRoots are the directory roots categories are resolved against.
type CatalogRoots struct {
	Layers        string
	StreetParking string
}

// Categories resolves the catalog against roots, leaving out skipped names.
// Unknown skip names are rejected so typos do not silently keep a category.
func Categories(roots CatalogRoots, skip []string) ([]model.FeatureCategory, error) {
	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		if _, ok := LookupCategory(name); !ok {
			return nil, &model.ValidationError{
				Field: "skip_categories",
				Err:   fmt.Errorf("%w: %q", model.ErrUnknownCategory, name),
			}
		}
		skipped[name] = true
	}

	categories := make([]model.FeatureCategory, 0, len(Catalog))
	for _, entry := range Catalog {
		if skipped[entry.Name] {
			continue
		}
		var dir string
		switch entry.Destination {
		case StreetParkingDestination:
			dir = filepath.Join(roots.StreetParking, "data")
		default:
			dir = filepath.Join(roots.Layers, entry.Name)
		}
		categories = append(categories, model.FeatureCategory{
			Name:           entry.Name,
			Query:          entry.Query,
			DestinationDir: dir,
		})
	}
	return categories, nil
}

func LookupCategory(name string) (CatalogEntry, bool) {
	for _, entry := range Catalog {
		if entry.Name == name {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

func CategoryNames() []string {
	names := make([]string, len(Catalog))
	for i, entry := range Catalog {
		names[i] = entry.Name
	}
	return names
}

func query(lines ...string) string {
	return strings.Join(lines, "\n")
}

// Catalog lists every category in acquisition order.
var Catalog = []CatalogEntry{
	{
		Name:        "amenity",
		Destination: LayerDestination,
		Query: query(
			`nwr["amenity"];`,
			`nwr["disused:amenity"];`,
		),
	},
	{
		Name:        "area_highway",
		Destination: LayerDestination,
		Query: query(
			`nwr["area:highway"];`,
			`nwr["road_marking"];`,
			`nwr["road_marking:forward"];`,
			`nwr["road_marking:backward"];`,
			`nwr["road_marking:left"];`,
			`nwr["road_marking:right"];`,
		),
	},
	{
		Name:        "barriers",
		Destination: LayerDestination,
		Query: query(
			`nwr["barrier"]["location"!="underground"]["level"!="-1"]["level"!="-2"]["level"!="-3"];`,
		),
	},
	{
		Name:        "bridge",
		Destination: LayerDestination,
		Query: query(
			`way["man_made"="bridge"];`,
			`relation["man_made"="bridge"];`,
		),
	},
	{
		Name:        "building_part",
		Destination: LayerDestination,
		Query: query(
			`way["building:part"]["location"!="underground"]["level"!="-1"]["level"!="-2"]["level"!="-3"];`,
		),
	},
	{
		Name:        "buildings",
		Destination: LayerDestination,
		Query: query(
			`nwr["building"]["location"!="underground"]["level"!="-1"]["level"!="-2"]["level"!="-3"];`,
		),
	},
	{
		Name:        "entrance",
		Destination: LayerDestination,
		Query: query(
			`node["entrance"];`,
			`node["entrance_marker:subway"];`,
			`node["entrance_marker:s-train"];`,
		),
	},
	{
		Name:        "highway",
		Destination: LayerDestination,
		Query: query(
			`// streets`,
			`way["highway"="primary"];`,
			`way["highway"="primary_link"];`,
			`way["highway"="secondary"];`,
			`way["highway"="secondary_link"];`,
			`way["highway"="tertiary"];`,
			`way["highway"="tertiary_link"];`,
			`way["highway"="residential"];`,
			`way["highway"="unclassified"];`,
			`way["highway"="living_street"];`,
			`way["highway"="pedestrian"];`,
			`way["highway"="road"];`,
			`way["highway"="service"];`,
			`way["highway"="track"];`,
			`way["highway"="bus_guideway"];`,
			`// streets under construction`,
			`way["highway"="construction"]["construction"="primary"];`,
			`way["highway"="construction"]["construction"="primary_link"];`,
			`way["highway"="construction"]["construction"="secondary"];`,
			`way["highway"="construction"]["construction"="secondary_link"];`,
			`way["highway"="construction"]["construction"="tertiary"];`,
			`way["highway"="construction"]["construction"="tertiary_link"];`,
			`way["highway"="construction"]["construction"="residential"];`,
			`way["highway"="construction"]["construction"="unclassified"];`,
			`way["highway"="construction"]["construction"="living_street"];`,
			`way["highway"="construction"]["construction"="pedestrian"];`,
			`way["highway"="construction"]["construction"="road"];`,
			`way["highway"="construction"]["construction"="service"];`,
			`way["highway"="construction"]["construction"="track"];`,
			`way["highway"="construction"]["construction"="bus_guideway"];`,
			`// bus stops`,
			`way["highway"="platform"];`,
			`way["public_transport"="platform"];`,
			`node["highway"="bus_stop"];`,
			`// crossings and traffic signals`,
			`node["highway"="traffic_signals"];`,
			`node["highway"="crossing"];`,
			`node["highway"="stop"];`,
			`node["highway"="give_way"];`,
			`node["kerb"];`,
			`// traffic calming`,
			`nwr["traffic_calming"];`,
		),
	},
	{
		Name:        "housenumber",
		Destination: LayerDestination,
		Query: query(
			`nwr["addr:housenumber"][!"name"][!"disused:name"][!"amenity"][!"shop"][!"disused:amenity"][!"disused:shop"][!"healthcare"][!"office"][!"leisure"][!"craft"];`,
		),
	},
	{
		Name:        "landuse",
		Destination: LayerDestination,
		Query: query(
			`way["landuse"];`,
			`relation["landuse"];`,
			`way["landcover"];`,
			`relation["landcover"];`,
		),
	},
	{
		Name:        "leisure",
		Destination: LayerDestination,
		Query: query(
			`nwr["leisure"];`,
		),
	},
	{
		Name:        "man_made",
		Destination: LayerDestination,
		Query: query(
			`nwr["man_made"="water_well"];`,
			`nwr["man_made"="monitoring_station"];`,
			`nwr["man_made"="mast"];`,
			`nwr["man_made"="pole"];`,
			`nwr["man_made"="flagpole"];`,
			`nwr["man_made"="chimney"];`,
			`nwr["man_made"="street_cabinet"];`,
			`nwr["man_made"="manhole"];`,
			`nwr["man_made"="planter"];`,
			`nwr["man_made"="guard_stone"];`,
			`nwr["man_made"="embankment"];`,
			`nwr["highway"="street_lamp"];`,
			`nwr["highway"="traffic_sign"];`,
			`nwr["advertising"];`,
			`nwr["emergency"="fire_hydrant"];`,
			`nwr["tourism"="artwork"];`,
			`nwr["tourism"="information"];`,
			`nwr["historic"="memorial"];`,
			`nwr["amenity"="loading_ramp"];`,
			`nwr["amenity"="vending_machine"]["vending"="parking_tickets"];`,
		),
	},
	{
		Name:        "motorway",
		Destination: LayerDestination,
		Query: query(
			`way["highway"="motorway"];`,
			`way["highway"="trunk"];`,
			`way["highway"="motorway_link"];`,
			`way["highway"="trunk_link"];`,
		),
	},
	{
		Name:        "natural",
		Destination: LayerDestination,
		Query: query(
			`nwr["natural"];`,
		),
	},
	{
		Name:        "path",
		Destination: LayerDestination,
		Query: query(
			`way["highway"="path"];`,
			`way["highway"="footway"];`,
			`way["highway"="steps"];`,
			`way["highway"="cycleway"];`,
			`way["highway"="track"];`,
		),
	},
	{
		Name:        "place",
		Destination: LayerDestination,
		Query: query(
			`nwr["place"];`,
		),
	},
	{
		Name:        "playground",
		Destination: LayerDestination,
		Query: query(
			`nwr["playground"];`,
			`nwr["skatepark:obstacles"];`,
		),
	},
	{
		Name:        "railway",
		Destination: LayerDestination,
		Query: query(
			`nwr["railway"];`,
		),
	},
	{
		Name:        "routes",
		Destination: LayerDestination,
		Query: query(
			`relation["route"="bicycle"];`,
		),
	},
	{
		Name:        "waterway",
		Destination: LayerDestination,
		Query: query(
			`way["waterway"];`,
		),
	},
	{
		Name:        "input",
		Destination: StreetParkingDestination,
		Query: query(
			`// streets`,
			`way["highway"="primary"];`,
			`way["highway"="primary_link"];`,
			`way["highway"="secondary"];`,
			`way["highway"="secondary_link"];`,
			`way["highway"="tertiary"];`,
			`way["highway"="tertiary_link"];`,
			`way["highway"="residential"];`,
			`way["highway"="unclassified"];`,
			`way["highway"="living_street"];`,
			`way["highway"="pedestrian"];`,
			`way["highway"="road"];`,
			`way["highway"="service"];`,
			`way["highway"="track"];`,
			`way["highway"="bus_guideway"];`,
			`// streets under construction`,
			`way["highway"="construction"]["construction"="primary"];`,
			`way["highway"="construction"]["construction"="primary_link"];`,
			`way["highway"="construction"]["construction"="secondary"];`,
			`way["highway"="construction"]["construction"="secondary_link"];`,
			`way["highway"="construction"]["construction"="tertiary"];`,
			`way["highway"="construction"]["construction"="tertiary_link"];`,
			`way["highway"="construction"]["construction"="residential"];`,
			`way["highway"="construction"]["construction"="unclassified"];`,
			`way["highway"="construction"]["construction"="living_street"];`,
			`way["highway"="construction"]["construction"="pedestrian"];`,
			`way["highway"="construction"]["construction"="road"];`,
			`way["highway"="construction"]["construction"="service"];`,
			`way["highway"="construction"]["construction"="track"];`,
			`way["highway"="construction"]["construction"="bus_guideway"];`,
			`// (foot)ways and path that can be used by motor vehicles`,
			`way["highway"]["motor_vehicle"]["motor_vehicle"!="no"];`,
			`way["highway"]["vehicle"]["vehicle"!="no"]["motor_vehicle"!="no"];`,
			`way["highway"]["emergency"]["emergency"!="no"];`,
			`// separately mapped street/street side parking`,
			`nwr["amenity"="parking"]["parking"="street_side"];`,
			`nwr["amenity"="parking"]["parking"="lane"];`,
			`nwr["amenity"="parking"]["parking"="on_kerb"];`,
			`nwr["amenity"="parking"]["parking"="half_on_kerb"];`,
			`nwr["amenity"="parking"]["parking"="shoulder"];`,
			`// traffic signals, crossings, bus stops, turning loops (affecting street parking)`,
			`node["highway"="traffic_signals"];`,
			`node["highway"="crossing"];`,
			`node["highway"="stop"];`,
			`node["highway"="give_way"];`,
			`node["highway"="bus_stop"];`,
			`node["highway"="turning_circle"];`,
			`node["highway"="turning_loop"];`,
			`// installations and obstacles on parking lanes`,
			`nwr["obstacle:parking"="yes"];`,
			`nwr["amenity"="bicycle_parking"]["bicycle_parking:position"="lane"];`,
			`nwr["amenity"="bicycle_parking"]["bicycle_parking:position"="street_side"];`,
			`nwr["amenity"="bicycle_parking"]["bicycle_parking:position"="kerb_extension"];`,
			`nwr["amenity"="motorcycle_parking"]["parking"="lane"];`,
			`nwr["amenity"="motorcycle_parking"]["parking"="street_side"];`,
			`nwr["amenity"="motorcycle_parking"]["parking"="kerb_extension"];`,
			`nwr["amenity"="small_electric_vehicle_parking"]["small_electric_vehicle_parking:position"="lane"];`,
			`nwr["amenity"="small_electric_vehicle_parking"]["small_electric_vehicle_parking:position"="street_side"];`,
			`nwr["amenity"="small_electric_vehicle_parking"]["small_electric_vehicle_parking:position"="kerb_extension"];`,
			`nwr["amenity"="bicycle_rental"]["bicycle_rental:position"="lane"];`,
			`nwr["amenity"="bicycle_rental"]["bicycle_rental:position"="street_side"];`,
			`nwr["amenity"="bicycle_rental"]["bicycle_rental:position"="kerb_extension"];`,
			`nwr["leisure"="parklet"];`,
			`nwr["amenity"="loading_ramp"];`,
			`nwr["leisure"="outdoor_seating"]["outdoor_seating"="parklet"];`,
			`way["traffic_calming"="kerb_extension"];`,
			`way["area:highway"="prohibited"];`,
		),
	},
}
