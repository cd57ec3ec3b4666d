package contextinfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

const unavailable = "Unavailable"

// Gatherer builds the contextual preamble placed at the top of system prompts
type Gatherer struct {
	client         *http.Client
	geolocationURL string
	geolocation    bool
	now            func() time.Time
}

func New(geolocation bool, geolocationURL string, timeout time.Duration) *Gatherer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gatherer{
		client:         &http.Client{Timeout: timeout},
		geolocationURL: geolocationURL,
		geolocation:    geolocation && geolocationURL != "",
		now:            time.Now,
	}
}

// Gather returns the current UTC time and coarse location.
// Location lookup failures never fail the caller.
func (g *Gatherer) Gather(ctx context.Context) string {
	now := g.now().UTC().Format("2006-01-02 15:04:05 UTC")
	city, region, country := g.locate(ctx)

	return fmt.Sprintf("Contextual Information:\nDate & Time (UTC): %s\nApproximate Location: %s, %s, %s\n---\n\n",
		now, city, region, country)
}

func (g *Gatherer) locate(ctx context.Context) (city, region, country string) {
	if !g.geolocation {
		return unavailable, unavailable, unavailable
	}

	body, err := g.fetch(ctx)
	if err != nil {
		logger.FromContext(ctx, logger.Named("context")).Debug("geolocation lookup failed", zap.Error(err))
		return unavailable, unavailable, unavailable
	}

	field := func(path, fallback string) string {
		if v := gjson.GetBytes(body, path).String(); v != "" {
			return v
		}
		return fallback
	}
	return field("city", "Unknown city"), field("region", "Unknown region"), field("country", "Unknown country")
}

func (g *Gatherer) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.geolocationURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("geolocation response is not json")
	}
	return body, nil
}
