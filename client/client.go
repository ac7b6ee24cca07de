// Package client orchestrates region resolution, variable resolution and
// transport into the two public operations every provider client exposes.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meteostations.app/geo"
	"meteostations.app/models"
	"meteostations.app/pkg/errors"
	"meteostations.app/pkg/logger"
	"meteostations.app/transport"
	"meteostations.app/variables"
)

// Provider supplies endpoint templates, field-name mappings and payload
// parsers for one station network.
type Provider interface {
	Name() string

	StationsRequest() (*transport.Request, error)
	ParseStations(body []byte) ([]models.Station, error)

	// VariablesRequest returns nil when the variable table is static
	VariablesRequest() *transport.Request
	ParseVariables(body []byte) ([]variables.Variable, error)
	StaticVariables() []variables.Variable
	PrimaryCodes() map[variables.ECV]string

	// TimeSeriesRequests builds the provider calls covering one time chunk
	TimeSeriesRequests(stations *models.StationTable, codes []string, start, end time.Time) ([]*transport.Request, error)
	ParseTimeSeries(body []byte, codes []string) ([]models.Observation, error)

	// MaxSpan caps the time span one request may cover; zero means unlimited
	MaxSpan() time.Duration
}

// PayloadIndirector marks providers whose first response carries the URL
// where the actual payload lives, requiring a second fetch.
type PayloadIndirector interface {
	IndirectURL(body []byte) (string, bool)
}

// Client is the orchestration layer shared by all provider clients. It holds
// no mutable state across calls except the memoized variable table and the
// transport's own cache.
type Client struct {
	provider  Provider
	resolver  *geo.Resolver
	transport *transport.CachedTransport
	log       *logger.Logger

	mu       sync.Mutex
	varTable *variables.Table
}

func New(provider Provider, resolver *geo.Resolver, tr *transport.CachedTransport, log *logger.Logger) *Client {
	return &Client{
		provider:  provider,
		resolver:  resolver,
		transport: tr,
		log:       log.WithField("provider", provider.Name()),
	}
}

// GetStationsDF resolves the region, fetches the provider's station catalog
// and returns the stations whose location intersects the region, preserving
// catalog order.
func (c *Client) GetStationsDF(ctx context.Context, region geo.RegionInput) (*models.StationTable, error) {
	resolved, err := c.resolver.Resolve(ctx, region)
	if err != nil {
		return nil, err
	}
	return c.stationsInRegion(ctx, resolved)
}

func (c *Client) stationsInRegion(ctx context.Context, region geo.Region) (*models.StationTable, error) {
	req, err := c.provider.StationsRequest()
	if err != nil {
		return nil, err
	}

	body, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	stations, err := c.provider.ParseStations(body)
	if err != nil {
		return nil, err
	}

	inRegion := make([]models.Station, 0, len(stations))
	for _, station := range stations {
		if region.Contains(station.Lon, station.Lat) {
			inRegion = append(inRegion, station)
		}
	}
	c.log.Info("stations resolved", "catalog", len(stations), "in_region", len(inRegion))

	return &models.StationTable{Stations: inRegion}, nil
}

// GetTSDF fetches observations for the requested variables over
// [start, end), splitting the range into provider-sized chunks, and pivots
// them into a dense time-indexed table. A failure fetching any chunk aborts
// the whole operation with the failing range identified.
func (c *Client) GetTSDF(ctx context.Context, region geo.RegionInput, vars interface{}, start, end time.Time) (*models.TimeSeriesTable, error) {
	if !end.After(start) {
		return nil, errors.New(errors.ErrorTypeConfiguration, "end date must be after start date")
	}

	resolved, err := c.resolver.Resolve(ctx, region)
	if err != nil {
		return nil, err
	}
	stations, err := c.stationsInRegion(ctx, resolved)
	if err != nil {
		return nil, err
	}

	table, err := c.variablesTable(ctx)
	if err != nil {
		return nil, err
	}
	resolvedVars, err := table.ResolveInput(vars)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(resolvedVars))
	for i, v := range resolvedVars {
		codes[i] = v.Code
	}

	if stations.Len() == 0 {
		return models.BuildTimeSeriesTable(nil, nil, codes), nil
	}

	var observations []models.Observation
	for _, chunk := range splitRange(start, end, c.provider.MaxSpan()) {
		chunkObs, err := c.fetchChunk(ctx, stations, codes, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %s..%s: %w",
				chunk.start.Format(time.RFC3339), chunk.end.Format(time.RFC3339), err)
		}
		observations = append(observations, chunkObs...)
	}

	// keep only requested stations inside the requested half-open window;
	// providers may over-deliver at chunk edges or return extra stations
	known := make(map[string]bool, stations.Len())
	for _, id := range stations.IDs() {
		known[id] = true
	}
	kept := observations[:0]
	for _, o := range observations {
		if known[o.StationID] && !o.Time.Before(start) && o.Time.Before(end) {
			kept = append(kept, o)
		}
	}

	result := models.BuildTimeSeriesTable(kept, stations.IDs(), codes)
	c.log.Info("time series assembled",
		"rows", result.NumRows(), "columns", result.NumColumns(), "observations", len(kept))
	return result, nil
}

func (c *Client) fetchChunk(ctx context.Context, stations *models.StationTable, codes []string, chunk timeRange) ([]models.Observation, error) {
	requests, err := c.provider.TimeSeriesRequests(stations, codes, chunk.start, chunk.end)
	if err != nil {
		return nil, err
	}

	var observations []models.Observation
	for _, req := range requests {
		if req.Policy == transport.CacheDefault {
			if chunk.end.After(time.Now()) {
				// ranges covering "now" would cache a moving target
				req.Policy = transport.CacheDisabled
			} else {
				req.Policy = transport.CacheTimeSeries
			}
		}
		body, err := c.fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		obs, err := c.provider.ParseTimeSeries(body, codes)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs...)
	}
	return observations, nil
}

// fetch sends one request, following a payload indirection when the
// provider declares one.
func (c *Client) fetch(ctx context.Context, req *transport.Request) ([]byte, error) {
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	body := resp.Body

	if indirector, ok := c.provider.(PayloadIndirector); ok {
		if target, found := indirector.IndirectURL(body); found {
			indirect, err := c.transport.Send(ctx, &transport.Request{URL: target, Policy: req.Policy})
			if err != nil {
				return nil, err
			}
			body = indirect.Body
		}
	}
	return body, nil
}

// variablesTable memoizes the provider's variable catalog per client instance
func (c *Client) variablesTable(ctx context.Context) (*variables.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.varTable != nil {
		return c.varTable, nil
	}

	req := c.provider.VariablesRequest()
	if req == nil {
		c.varTable = variables.NewTable(c.provider.StaticVariables(), c.provider.PrimaryCodes())
		return c.varTable, nil
	}

	body, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	vars, err := c.provider.ParseVariables(body)
	if err != nil {
		return nil, err
	}
	c.varTable = variables.NewTable(vars, c.provider.PrimaryCodes())
	return c.varTable, nil
}

type timeRange struct {
	start time.Time
	end   time.Time
}

// splitRange cuts [start, end) into consecutive non-overlapping chunks of at
// most span each
func splitRange(start, end time.Time, span time.Duration) []timeRange {
	if span <= 0 || end.Sub(start) <= span {
		return []timeRange{{start, end}}
	}
	var chunks []timeRange
	for s := start; s.Before(end); s = s.Add(span) {
		e := s.Add(span)
		if e.After(end) {
			e = end
		}
		chunks = append(chunks, timeRange{s, e})
	}
	return chunks
}
