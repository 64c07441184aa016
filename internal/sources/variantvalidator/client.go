// Package variantvalidator resolves gene identifiers to genomic
// coordinates through the VariantValidator gene2transcripts service.
package variantvalidator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/panelhub/paneltrack/internal/bed"
	"github.com/panelhub/paneltrack/internal/models"
	"github.com/panelhub/paneltrack/internal/ratelimit"
)

// DefaultBaseURL is the public VariantValidator tools endpoint.
const DefaultBaseURL = "https://rest.variantvalidator.org/VariantValidator/tools/gene2transcripts_v2"

// Transcript filter options accepted by the service, with the
// user-facing aliases mapped to their API values.
var transcriptFilters = map[string]string{
	"mane_select + mane_plus_clinical": "mane",
	"mane_select":                      "mane_select",
	"canonical":                        "select",
}

// APIError reports a non-success response from the coordinate service.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("variantvalidator: unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client talks to the coordinate service. Transient failures are
// retried with exponential backoff before being surfaced.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	baseURL    string
	retry      ratelimit.Config
}

// NewClient creates a coordinate client. An empty baseURL selects the
// public service.
func NewClient(baseURL string, limiter ratelimit.Limiter, retry ratelimit.Config) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    limiter,
		baseURL:    baseURL,
		retry:      retry,
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	var lastErr error
	attempts := c.retry.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(ratelimit.Backoff(attempt-1, c.retry)):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("execute request: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			lastErr = &APIError{StatusCode: resp.StatusCode, URL: u}
			if retryable(resp.StatusCode) {
				continue
			}
			return lastErr
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

// GeneRegions fetches coordinates for a pipe-joined gene query and
// parses the response into unsorted BED rows. Genes the service has no
// record for, or whose payload cannot be parsed, become placeholder
// rows rather than failing the whole query.
func (c *Client) GeneRegions(ctx context.Context, geneQuery string, build models.GenomeBuild, transcriptSet, limitTranscripts string) ([]bed.Row, error) {
	if geneQuery == "" {
		return nil, fmt.Errorf("variantvalidator: empty gene query")
	}
	if transcriptSet == "" {
		transcriptSet = "all"
	}
	if mapped, ok := transcriptFilters[limitTranscripts]; ok {
		limitTranscripts = mapped
	}
	if limitTranscripts == "" {
		limitTranscripts = "mane_select"
	}

	u := fmt.Sprintf("%s/%s/%s/%s/%s",
		c.baseURL,
		url.PathEscape(geneQuery),
		url.PathEscape(limitTranscripts),
		url.PathEscape(transcriptSet),
		url.PathEscape(string(build)),
	)

	var results []geneResult
	if err := c.getJSON(ctx, u, &results); err != nil {
		return nil, err
	}
	return rowsFromResults(results), nil
}

func rowsFromResults(results []geneResult) []bed.Row {
	var rows []bed.Row
	for _, gene := range results {
		if len(gene.Transcripts) == 0 || gene.Transcripts[0].Annotations.Chromosome == "" {
			rows = append(rows, bed.NoRecordRow(gene.RequestedSymbol))
			continue
		}

		chrom := "chr" + gene.Transcripts[0].Annotations.Chromosome
		parsed := false
		for _, tx := range gene.Transcripts {
			for _, span := range tx.GenomicSpans {
				strand := "+"
				if span.Orientation != 1 {
					strand = "-"
				}
				for _, ex := range span.ExonStructure {
					rows = append(rows, bed.Row{
						Chrom:  chrom,
						Start:  fmt.Sprintf("%d", ex.GenomicStart),
						End:    fmt.Sprintf("%d", ex.GenomicEnd),
						Name:   fmt.Sprintf("%s_exon%d_%s", gene.CurrentSymbol, ex.ExonNumber, tx.Reference),
						Strand: strand,
					})
					parsed = true
				}
			}
		}
		if !parsed {
			rows = append(rows, bed.ErrorRow(gene.CurrentSymbol))
		}
	}
	return rows
}
