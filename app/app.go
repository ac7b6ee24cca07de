// Package app wires configuration, caching, geocoding and authentication
// into ready-to-use provider clients.
package app

import (
	"io"

	"meteostations.app/auth"
	"meteostations.app/client"
	"meteostations.app/config"
	"meteostations.app/geo"
	"meteostations.app/pkg/errors"
	"meteostations.app/pkg/logger"
	"meteostations.app/providers"
	"meteostations.app/transport"
)

const (
	credMeteocatAPIKey = "METEOCAT_API_KEY"
	credAemetAPIKey    = "AEMET_API_KEY"
)

// App holds the shared collaborators every provider client is built from:
// one cache store, one geocoder-backed resolver and one credential store
// seeded at construction.
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	store    transport.Store
	resolver *geo.Resolver
	creds    *auth.CredentialStore
}

// New loads configuration from the environment and assembles the app
func New() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel)))
}

// NewWithConfig assembles the app from explicit configuration
func NewWithConfig(cfg *config.Config, log *logger.Logger) (*App, error) {
	store, err := transport.NewStoreFromConfig(&cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	geocoder, err := newGeocoder(&cfg.Geocoder)
	if err != nil {
		return nil, err
	}

	// credentials are read once here; explicit config wins over environment
	creds := auth.NewCredentialStore()
	if cfg.Meteocat.APIKey != "" {
		creds.Set(credMeteocatAPIKey, cfg.Meteocat.APIKey)
	}
	if cfg.Aemet.APIKey != "" {
		creds.Set(credAemetAPIKey, cfg.Aemet.APIKey)
	}
	creds.LoadEnv(credMeteocatAPIKey, credAemetAPIKey)

	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		resolver: geo.NewResolver(geocoder),
		creds:    creds,
	}, nil
}

func newGeocoder(cfg *config.GeocoderConfig) (geo.Geocoder, error) {
	switch cfg.Provider {
	case "nominatim":
		return geo.NewNominatimGeocoder(cfg), nil
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, errors.NewConfigurationError("google geocoder requires GEOCODER_GOOGLE_API_KEY", nil)
		}
		return geo.NewGoogleGeocoder(cfg.GoogleAPIKey), nil
	default:
		return nil, errors.NewConfigurationError("unknown geocoder provider: "+cfg.Provider, nil)
	}
}

// Agrometeo returns a client for the open-access Agrometeo network
func (a *App) Agrometeo() *client.Client {
	provider := providers.NewAgrometeo(&a.cfg.Agrometeo)
	return a.newClient(provider, auth.NoAuth{})
}

// Meteocat returns a client for the Meteocat XEMA network
func (a *App) Meteocat() (*client.Client, error) {
	key, ok := a.creds.Get(credMeteocatAPIKey)
	if !ok {
		return nil, errors.NewConfigurationError("meteocat requires METEOCAT_API_KEY", nil)
	}
	provider := providers.NewMeteocat(&a.cfg.Meteocat)
	return a.newClient(provider, auth.APIKeyHeader{Header: "X-Api-Key", Key: key}), nil
}

// Aemet returns a client for the AEMET OpenData network
func (a *App) Aemet() (*client.Client, error) {
	key, ok := a.creds.Get(credAemetAPIKey)
	if !ok {
		return nil, errors.NewConfigurationError("aemet requires AEMET_API_KEY", nil)
	}
	provider := providers.NewAemet(&a.cfg.Aemet)
	return a.newClient(provider, auth.APIKeyParam{Param: "api_key", Key: key}), nil
}

func (a *App) newClient(provider client.Provider, strategy auth.Strategy) *client.Client {
	tr := transport.NewFromConfig(provider.Name(), a.cfg, a.store, strategy, a.log)
	return client.New(provider, a.resolver, tr, a.log)
}

// Close releases the cache store when it holds resources
func (a *App) Close() error {
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
