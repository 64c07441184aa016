package variantvalidator

import (
	"context"
	"sort"
	"strings"
)

// SymbolSource resolves HGNC IDs to gene symbols. Satisfied by the
// query component.
type SymbolSource interface {
	GeneSymbols(ctx context.Context, hgncIDs []string) (map[string]string, error)
}

// BuildGeneQuery joins HGNC IDs into the pipe separated query string
// the coordinate service expects. IDs listed in problemGenes are known
// to fail lookup by ID and are substituted with their gene symbol; an
// ID with no known symbol is passed through unchanged. The output is
// sorted for stable request URLs.
func BuildGeneQuery(ctx context.Context, hgncIDs []string, problemGenes map[string]struct{}, symbols SymbolSource) (string, error) {
	var toReplace []string
	for _, id := range hgncIDs {
		if _, ok := problemGenes[id]; ok {
			toReplace = append(toReplace, id)
		}
	}

	replacements := map[string]string{}
	if len(toReplace) > 0 && symbols != nil {
		var err error
		replacements, err = symbols.GeneSymbols(ctx, toReplace)
		if err != nil {
			return "", err
		}
	}

	seen := make(map[string]struct{}, len(hgncIDs))
	terms := make([]string, 0, len(hgncIDs))
	for _, id := range hgncIDs {
		term := id
		if symbol, ok := replacements[id]; ok && symbol != "" {
			term = symbol
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return strings.Join(terms, "|"), nil
}

// ParseProblemGenes reads a newline separated gene list, skipping
// blanks.
func ParseProblemGenes(data []byte) map[string]struct{} {
	genes := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		genes[line] = struct{}{}
	}
	return genes
}
