package panelapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/panelhub/paneltrack/internal/models"
	"github.com/panelhub/paneltrack/internal/ratelimit"
)

// DefaultBaseURL is the public PanelApp panels API.
const DefaultBaseURL = "https://panelapp.genomicsengland.co.uk/api/v1/panels"

// APIError reports a non-success response from the registry.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("panelapp: unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client talks to the upstream panel registry.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	baseURL    string
}

// NewClient creates a registry client. An empty baseURL selects the public
// registry.
func NewClient(baseURL string, limiter ratelimit.Limiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		baseURL:    baseURL,
	}
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, URL: u}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// LatestSignedOffVersion returns the current signed-off version of a panel.
func (c *Client) LatestSignedOffVersion(ctx context.Context, panelID int) (float64, error) {
	u := fmt.Sprintf("%s/signedoff/?panel_id=%d&display=latest", c.baseURL, panelID)

	var resp signedOffResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return 0, err
	}
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("panelapp: no signed-off panel for id %d", panelID)
	}

	version, err := strconv.ParseFloat(resp.Results[0].Version, 64)
	if err != nil {
		return 0, fmt.Errorf("panelapp: parse version %q: %w", resp.Results[0].Version, err)
	}
	return version, nil
}

// GenesForRcode returns the gene-to-confidence mapping of the current
// panel for a disease code.
func (c *Client) GenesForRcode(ctx context.Context, rcode string) (models.GeneSet, error) {
	u := fmt.Sprintf("%s/%s/genes/", c.baseURL, url.PathEscape(rcode))

	var resp genesResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return GeneSetFromEntries(resp.Results), nil
}

// PanelVersion fetches the raw panel document at an exact version, as
// needed by the downgrade flow.
func (c *Client) PanelVersion(ctx context.Context, panelID int, version float64) (*PanelPayload, error) {
	u := fmt.Sprintf("%s/%d/?version=%s", c.baseURL, panelID, strconv.FormatFloat(version, 'f', -1, 64))

	var payload PanelPayload
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SignedOffPanels walks the paginated signed-off listing and returns
// every panel summary. Used by the periodic sync job.
func (c *Client) SignedOffPanels(ctx context.Context) ([]PanelSummary, error) {
	var panels []PanelSummary

	u := fmt.Sprintf("%s/signedoff/?format=json", c.baseURL)
	for u != "" {
		var page signedOffResponse
		if err := c.getJSON(ctx, u, &page); err != nil {
			return nil, err
		}
		panels = append(panels, page.Results...)
		u = page.Next
	}
	return panels, nil
}

// SignedOffVersions returns every signed-off panel's latest version,
// keyed by panel ID. Entries with unparseable versions are skipped.
func (c *Client) SignedOffVersions(ctx context.Context) (map[int]float64, error) {
	panels, err := c.SignedOffPanels(ctx)
	if err != nil {
		return nil, err
	}

	versions := make(map[int]float64, len(panels))
	for _, p := range panels {
		v, err := strconv.ParseFloat(p.Version, 64)
		if err != nil {
			continue
		}
		versions[p.ID] = v
	}
	return versions, nil
}
