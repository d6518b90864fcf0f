// Package airtraffic correlates live OpenSky state vectors with the
// arrival/departure records of configured airports and reduces each
// match to a compact per-flight record ready for publication.
package airtraffic

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/MulvadT/swim-adsb/internal/cache"
	"github.com/MulvadT/swim-adsb/internal/metrics"
	"github.com/MulvadT/swim-adsb/internal/opensky"
)

const (
	statesTTL      = 30 * time.Second
	connectionsTTL = 10 * time.Minute
	cacheSize      = 1024

	unknownAirport = "Unknown airport"
)

// Client is the subset of the OpenSky API used here.
type Client interface {
	GetStates(ctx context.Context) ([]opensky.StateVector, error)
	GetArrivalsByAirport(ctx context.Context, airport string, begin, end int64) ([]opensky.FlightData, error)
	GetDeparturesByAirport(ctx context.Context, airport string, begin, end int64) ([]opensky.FlightData, error)
}

// FlightRecord is the reduced position+route record for one matched
// flight. Nil pointer fields serialize as JSON null.
type FlightRecord struct {
	ICAO24      *string  `json:"icao24"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	LastContact *int64   `json:"last_contact"`
}

// Message is the outbound payload envelope handed to the broker.
type Message struct {
	Body        []byte
	ContentType string
}

// AirTraffic tracks flights from and to specific airports using the
// OpenSky Network API.
type AirTraffic struct {
	client   Client
	spanDays int
	clock    func() time.Time

	states     *cache.TTL[struct{}, map[string]opensky.StateVector]
	arrivals   *cache.TTL[string, []opensky.FlightData]
	departures *cache.TTL[string, []opensky.FlightData]
}

// New creates an AirTraffic that looks back spanDays when querying
// arrivals and departures.
func New(client Client, spanDays int) *AirTraffic {
	return &AirTraffic{
		client:     client,
		spanDays:   spanDays,
		clock:      time.Now,
		states:     cache.NewTTL[struct{}, map[string]opensky.StateVector](statesTTL, cacheSize),
		arrivals:   cache.NewTTL[string, []opensky.FlightData](connectionsTTL, cacheSize),
		departures: cache.NewTTL[string, []opensky.FlightData](connectionsTTL, cacheSize),
	}
}

// WithClock overrides the clock, for tests. The caches keep their own
// clocks; this one only drives the traffic window.
func (a *AirTraffic) WithClock(now func() time.Time) *AirTraffic {
	a.clock = now
	return a
}

// trafficWindow returns the query window as epoch seconds: midnight of
// (today - spanDays) through 23:59:59.999999 of today, in local time.
// Recomputed on every call so it always reflects "now".
func (a *AirTraffic) trafficWindow() (int64, int64) {
	now := a.clock()
	y, m, d := now.Date()
	loc := now.Location()

	begin := time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, -a.spanDays)
	end := time.Date(y, m, d, 23, 59, 59, 999999000, loc)

	return begin.Unix(), end.Unix()
}

// StatesByICAO24 returns the current state snapshot keyed by icao24,
// skipping vectors without an identifier. A fetch failure is logged and
// degrades to an empty snapshot. The result is cached for 30 seconds
// and shared by all callers within that window.
func (a *AirTraffic) StatesByICAO24(ctx context.Context) map[string]opensky.StateVector {
	if snapshot, ok := a.states.Get(struct{}{}); ok {
		return snapshot
	}

	states, err := a.client.GetStates(ctx)
	if err != nil {
		log.Printf("opensky get states error: %v", err)
		metrics.ProviderRequest("states", false)
		states = nil
	} else {
		metrics.ProviderRequest("states", true)
	}

	snapshot := make(map[string]opensky.StateVector, len(states))
	for _, s := range states {
		if s.ICAO24 == "" {
			continue
		}
		snapshot[s.ICAO24] = s
	}

	a.states.Set(struct{}{}, snapshot)
	return snapshot
}

// arrivalsToday returns today's span of arrivals for the airport,
// cached for 10 minutes per airport.
func (a *AirTraffic) arrivalsToday(ctx context.Context, airport string) []opensky.FlightData {
	if flights, ok := a.arrivals.Get(airport); ok {
		return flights
	}
	flights := a.fetchConnections(ctx, "arrivals", airport, a.client.GetArrivalsByAirport)
	a.arrivals.Set(airport, flights)
	return flights
}

// departuresToday returns today's span of departures for the airport,
// cached for 10 minutes per airport, independently of arrivals.
func (a *AirTraffic) departuresToday(ctx context.Context, airport string) []opensky.FlightData {
	if flights, ok := a.departures.Get(airport); ok {
		return flights
	}
	flights := a.fetchConnections(ctx, "departures", airport, a.client.GetDeparturesByAirport)
	a.departures.Set(airport, flights)
	return flights
}

type connectionsFunc func(ctx context.Context, airport string, begin, end int64) ([]opensky.FlightData, error)

func (a *AirTraffic) fetchConnections(ctx context.Context, kind, airport string, fetch connectionsFunc) []opensky.FlightData {
	begin, end := a.trafficWindow()

	flights, err := fetch(ctx, airport, begin, end)
	if err != nil {
		log.Printf("opensky %s error for %s between %d and %d: %v", kind, airport, begin, end, err)
		metrics.ProviderRequest(kind, false)
		return nil
	}
	metrics.ProviderRequest(kind, true)
	return flights
}

// ArrivalsHandler produces the joined arrival records for the airport
// as a JSON message. Provider failures surface as an empty array body.
func (a *AirTraffic) ArrivalsHandler(ctx context.Context, airport string) (Message, error) {
	states := a.StatesByICAO24(ctx)
	return marshalMessage(joinConnections(states, a.arrivalsToday(ctx, airport)))
}

// DeparturesHandler produces the joined departure records for the
// airport as a JSON message.
func (a *AirTraffic) DeparturesHandler(ctx context.Context, airport string) (Message, error) {
	states := a.StatesByICAO24(ctx)
	return marshalMessage(joinConnections(states, a.departuresToday(ctx, airport)))
}

func marshalMessage(records []FlightRecord) (Message, error) {
	body, err := json.Marshal(records)
	if err != nil {
		return Message{}, fmt.Errorf("encoding flight records: %w", err)
	}
	return Message{Body: body, ContentType: "application/json"}, nil
}

// joinConnections inner-joins the connection list against the state
// snapshot on icao24. Duplicate identifiers dedupe last-write-wins;
// records come out in first-occurrence order of the connection list.
func joinConnections(states map[string]opensky.StateVector, connections []opensky.FlightData) []FlightRecord {
	byICAO24 := make(map[string]opensky.FlightData, len(connections))
	order := make([]string, 0, len(connections))
	for _, fc := range connections {
		if fc.ICAO24 == "" {
			continue
		}
		if _, seen := byICAO24[fc.ICAO24]; !seen {
			order = append(order, fc.ICAO24)
		}
		byICAO24[fc.ICAO24] = fc
	}

	records := make([]FlightRecord, 0, len(order))
	for _, icao24 := range order {
		state, ok := states[icao24]
		if !ok {
			continue
		}
		records = append(records, newFlightRecord(&state, byICAO24[icao24]))
	}
	return records
}

// newFlightRecord reduces a live state and its connection record to the
// published subset. A nil state should be unreachable given the join
// filter; the branch stays for parity with the null-position contract.
func newFlightRecord(state *opensky.StateVector, fc opensky.FlightData) FlightRecord {
	from := unknownAirport
	if fc.EstDepartureAirport != nil && *fc.EstDepartureAirport != "" {
		from = *fc.EstDepartureAirport
	}
	to := unknownAirport
	if fc.EstArrivalAirport != nil && *fc.EstArrivalAirport != "" {
		to = *fc.EstArrivalAirport
	}

	if state == nil {
		rec := FlightRecord{From: from, To: to}
		if fc.ICAO24 != "" {
			icao24 := fc.ICAO24
			rec.ICAO24 = &icao24
		}
		return rec
	}

	icao24 := state.ICAO24
	return FlightRecord{
		ICAO24:      &icao24,
		Lat:         state.Latitude,
		Lng:         state.Longitude,
		From:        from,
		To:          to,
		LastContact: state.LastContact,
	}
}
