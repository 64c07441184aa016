package panelapp

// signedOffResponse is the paginated envelope of the signed-off panels
// listing.
type signedOffResponse struct {
	Count   int            `json:"count"`
	Next    string         `json:"next"`
	Results []PanelSummary `json:"results"`
}

// PanelSummary is one entry of the signed-off listing.
type PanelSummary struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	RelevantDisorders []string `json:"relevant_disorders"`
}

// genesResponse is the envelope of the per-panel genes endpoint.
type genesResponse struct {
	Count   int         `json:"count"`
	Next    string      `json:"next"`
	Results []GeneEntry `json:"results"`
}

// GeneEntry is one gene of a panel as the registry reports it.
type GeneEntry struct {
	GeneData        GeneData `json:"gene_data"`
	ConfidenceLevel string   `json:"confidence_level"`
}

// GeneData carries the registry's gene identifiers.
type GeneData struct {
	HGNCID     string `json:"hgnc_id"`
	GeneSymbol string `json:"gene_symbol"`
}

// PanelPayload is the raw versioned panel document, as consumed by the
// downgrade flow.
type PanelPayload struct {
	ID      int         `json:"id"`
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Genes   []GeneEntry `json:"genes"`
}
