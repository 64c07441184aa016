package variantvalidator

// geneResult is one element of the gene2transcripts_v2 response array.
type geneResult struct {
	RequestedSymbol string       `json:"requested_symbol"`
	CurrentSymbol   string       `json:"current_symbol"`
	Transcripts     []transcript `json:"transcripts"`
}

type transcript struct {
	Reference    string                 `json:"reference"`
	Annotations  annotations            `json:"annotations"`
	GenomicSpans map[string]genomicSpan `json:"genomic_spans"`
}

type annotations struct {
	Chromosome string `json:"chromosome"`
}

type genomicSpan struct {
	Orientation   int    `json:"orientation"`
	ExonStructure []exon `json:"exon_structure"`
}

type exon struct {
	ExonNumber   int   `json:"exon_number"`
	GenomicStart int64 `json:"genomic_start"`
	GenomicEnd   int64 `json:"genomic_end"`
}
