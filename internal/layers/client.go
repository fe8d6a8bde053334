// Package layers reads pre-computed block-group index layers from the static
// data host.
package layers

import (
	"context"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/blockgroup-index/internal/fetcher"
	"github.com/sells-group/blockgroup-index/internal/model"
	"github.com/sells-group/blockgroup-index/internal/monitoring"
)

// Format is a file format published on the data host.
type Format string

// Published formats.
const (
	FormatGeoJSON Format = "geojson"
	FormatCSV     Format = "csv"
)

// cacheBustParam is the query parameter used to defeat intermediary caches.
const cacheBustParam = "t"

// Client fetches index layers from the data host.
type Client struct {
	baseURL string
	fetcher fetcher.Fetcher
	clock   clockwork.Clock
	metrics *monitoring.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the clock used for cache-busting timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

// WithMetrics records per-layer fetch metrics.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// NewClient creates a data host client rooted at baseURL.
func NewClient(baseURL string, f fetcher.Fetcher, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: f,
		clock:   clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the data host root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// LayerURL returns {base}/{city}_blockgroup_{metric}_{year}.{format}.
func (c *Client) LayerURL(city model.City, metric model.Metric, year model.Year, format Format) string {
	return c.baseURL + "/" + LayerFile(city, metric, year, format)
}

// LayerFile returns the object name of one published layer.
func LayerFile(city model.City, metric model.Metric, year model.Year, format Format) string {
	return string(city) + "_blockgroup_" + string(metric) + "_" + string(year) + "." + string(format)
}

// withCacheBust appends t=<epoch millis> to rawURL.
func withCacheBust(rawURL string, now time.Time) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "layers: parse layer url")
	}
	q := u.Query()
	q.Set(cacheBustParam, strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchLayer downloads and decodes one metric layer as a feature collection.
// Reserved cities fail with model.ErrCityInactive without a request.
func (c *Client) FetchLayer(ctx context.Context, city model.City, metric model.Metric, year model.Year) (*geojson.FeatureCollection, error) {
	if !city.Active() {
		return nil, eris.Wrapf(model.ErrCityInactive, "layers: %s", city)
	}

	start := c.clock.Now()
	target, err := withCacheBust(c.LayerURL(city, metric, year, FormatGeoJSON), start)
	if err != nil {
		return nil, err
	}

	fc, err := c.fetchCollection(ctx, target)
	c.metrics.ObserveLayerFetch(string(metric), c.clock.Since(start), err)
	if err != nil {
		return nil, eris.Wrapf(err, "layers: fetch %s %s %s", city, metric, year)
	}

	zap.L().Debug("layer fetched",
		zap.String("city", string(city)),
		zap.String("metric", string(metric)),
		zap.String("year", string(year)),
		zap.Int("features", len(fc.Features)),
	)
	return fc, nil
}

func (c *Client) fetchCollection(ctx context.Context, target string) (*geojson.FeatureCollection, error) {
	wc, err := fetcher.FetchJSON[wireCollection](ctx, c.fetcher, target)
	if err != nil {
		return nil, err
	}
	return wc.collection()
}

// SaveLayer downloads one published layer file into dir unchanged and
// returns the written path and size.
func (c *Client) SaveLayer(ctx context.Context, city model.City, metric model.Metric, year model.Year, format Format, dir string) (string, int64, error) {
	if !city.Active() {
		return "", 0, eris.Wrapf(model.ErrCityInactive, "layers: %s", city)
	}
	path := filepath.Join(dir, LayerFile(city, metric, year, format))
	n, err := c.fetcher.DownloadToFile(ctx, c.LayerURL(city, metric, year, format), path)
	if err != nil {
		return "", 0, eris.Wrapf(err, "layers: save %s", filepath.Base(path))
	}
	return path, n, nil
}

// Download is a direct link to one published layer file.
type Download struct {
	Metric model.Metric `json:"metric"`
	Format Format       `json:"format"`
	File   string       `json:"file"`
	URL    string       `json:"url"`
}

// Downloads lists the CSV and GeoJSON links for every metric of a city and
// year. Links point at the host as-is, without cache busting.
func (c *Client) Downloads(city model.City, year model.Year) []Download {
	ms := model.Metrics()
	out := make([]Download, 0, len(ms)*2)
	for _, m := range ms {
		for _, f := range []Format{FormatCSV, FormatGeoJSON} {
			out = append(out, Download{
				Metric: m,
				Format: f,
				File:   LayerFile(city, m, year, f),
				URL:    c.LayerURL(city, m, year, f),
			})
		}
	}
	return out
}
