package repositories

import (
	"errors"
	"fmt"
)

// NotFoundError reports a valid query that matched no data. It carries the
// echoed query key so the API layer can render an empty-result payload
// without inspecting the query again. It is not a failure condition.
type NotFoundError struct {
	Key     string
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// IsNotFound reports whether err is a no-data result.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

var (
	// ErrNotImplemented signals a recognised but unsupported query shape,
	// distinct from "no data".
	ErrNotImplemented = errors.New("similar matching across multiple gene IDs is not implemented")

	// ErrPanelIDRequired is raised when a caller omits the panel ID.
	ErrPanelIDRequired = errors.New("panel ID must be provided")

	// ErrRcodeRequired is raised when a caller omits the R code.
	ErrRcodeRequired = errors.New("R code must be provided")

	// ErrGeneIDsRequired is raised when a caller supplies no gene IDs.
	ErrGeneIDsRequired = errors.New("at least one HGNC ID must be provided")

	// ErrNoPanelRow signals that a version update matched no stored panel.
	// Recoverable by the orchestration layer, observable as zero rows
	// affected.
	ErrNoPanelRow = errors.New("no matching panel row")

	// ErrNoRegistryRecords signals that the registry returned no gene
	// records for a requested panel version.
	ErrNoRegistryRecords = errors.New("registry returned no records for the requested panel version")
)
