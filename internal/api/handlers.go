package api

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/panelhub/paneltrack/internal/bed"
	"github.com/panelhub/paneltrack/internal/metrics"
	"github.com/panelhub/paneltrack/internal/models"
	"github.com/panelhub/paneltrack/internal/sources/variantvalidator"
)

var (
	rcodePattern = regexp.MustCompile(`^[rR]\d+(\.\d+)?$`)
	hgncPattern  = regexp.MustCompile(`^HGNC:\d+$`)
)

func splitHGNCList(raw string) ([]string, error) {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !hgncPattern.MatchString(part) {
			return nil, fmt.Errorf("invalid HGNC ID %q: must be 'HGNC:' followed by digits", part)
		}
		ids = append(ids, part)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no HGNC IDs provided")
	}
	return ids, nil
}

// searchPanels serves GET /panels. Exactly one of ID (numeric panel ID
// or R code) and HGNC_ID (comma separated gene list) must be supplied.
func (s *Server) searchPanels(c echo.Context) error {
	id := c.QueryParam("ID")
	hgnc := c.QueryParam("HGNC_ID")
	similar, _ := strconv.ParseBool(c.QueryParam("Similar_Matches"))

	switch {
	case id != "" && hgnc != "":
		return badRequest(c, "provide either ID or HGNC_ID, not both")
	case id == "" && hgnc == "":
		return badRequest(c, "provide ID or HGNC_ID")
	}

	ctx := c.Request().Context()
	if id != "" {
		if panelID, err := strconv.Atoi(id); err == nil {
			records, err := s.query.PanelData(ctx, panelID, similar)
			if err != nil {
				return renderError(c, err)
			}
			return c.JSON(http.StatusOK, records)
		}
		if !rcodePattern.MatchString(id) {
			return badRequest(c, fmt.Sprintf("ID %q is neither a panel ID nor an R code", id))
		}
		records, err := s.query.PanelsByRcode(ctx, id, similar)
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(http.StatusOK, records)
	}

	ids, err := splitHGNCList(hgnc)
	if err != nil {
		return badRequest(c, err.Error())
	}
	hits, err := s.query.PanelsFromGeneList(ctx, ids, similar)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, hits)
}

// panelGenes serves GET /panels/genes: the gene membership of one panel
// identified by numeric ID or R code.
func (s *Server) panelGenes(c echo.Context) error {
	id := c.QueryParam("ID")
	similar, _ := strconv.ParseBool(c.QueryParam("Similar_Matches"))
	if id == "" {
		return badRequest(c, "provide ID")
	}

	panelID, rcode, err := s.resolveID(id)
	if err != nil {
		return badRequest(c, err.Error())
	}

	genes, err := s.query.GeneList(c.Request().Context(), panelID, rcode, similar)
	if err != nil {
		return renderError(c, err)
	}

	sorted := make([]string, 0, len(genes))
	for g := range genes {
		sorted = append(sorted, g)
	}
	sort.Strings(sorted)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ID":    id,
		"Genes": sorted,
	})
}

func (s *Server) resolveID(id string) (int, string, error) {
	if panelID, err := strconv.Atoi(id); err == nil {
		return panelID, "", nil
	}
	if rcodePattern.MatchString(id) {
		return 0, id, nil
	}
	return 0, "", fmt.Errorf("ID %q is neither a panel ID nor an R code", id)
}

// downloadBed serves GET /panels/download: a panel's gene regions as a
// BED attachment. source=local reads the cached region table;
// source=remote (the default) asks the coordinate service.
func (s *Server) downloadBed(c echo.Context) error {
	id := c.QueryParam("ID")
	if id == "" {
		return badRequest(c, "provide ID")
	}
	build := models.GenomeBuild(c.QueryParam("genome_build"))
	if build == "" {
		build = models.BuildGRCh38
	}
	if !build.Valid() {
		return badRequest(c, fmt.Sprintf("unsupported genome build %q", build))
	}
	source := c.QueryParam("source")
	if source == "" {
		source = "remote"
	}

	panelID, rcode, err := s.resolveID(id)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	genes, err := s.query.GeneList(ctx, panelID, rcode, false)
	if err != nil {
		return renderError(c, err)
	}
	ids := make([]string, 0, len(genes))
	for g := range genes {
		ids = append(ids, g)
	}
	sort.Strings(ids)

	var rows []bed.Row
	switch source {
	case "local":
		regions, err := s.query.LocalBed(ctx, ids, build)
		if err != nil {
			return renderError(c, err)
		}
		rows = bed.FromRegions(regions)
	case "remote":
		geneQuery, err := variantvalidator.BuildGeneQuery(ctx, ids, s.problemGenes, s.query)
		if err != nil {
			return renderError(c, err)
		}
		rows, err = s.coords.GeneRegions(ctx, geneQuery, build,
			c.QueryParam("transcript_set"), c.QueryParam("limit_transcripts"))
		if err != nil {
			metrics.RegistryErrorsTotal.WithLabelValues("variantvalidator").Inc()
			return c.JSON(http.StatusBadGateway, map[string]string{
				"Message": "coordinate service unavailable, try source=local",
			})
		}
	default:
		return badRequest(c, fmt.Sprintf("unknown source %q: use local or remote", source))
	}

	bed.Sort(rows)
	var buf bytes.Buffer
	if err := bed.Write(&buf, rows); err != nil {
		return err
	}

	filename := fmt.Sprintf("panel_%s_%s.bed", id, build)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, "text/plain", buf.Bytes())
}

// patientHistory serves GET /patient. With both Patient_ID and R_code it
// reports the latest version the patient was tested on; with one of the
// two it lists matching records.
func (s *Server) patientHistory(c echo.Context) error {
	patientID := c.QueryParam("Patient_ID")
	rcode := c.QueryParam("R_code")
	ctx := c.Request().Context()

	switch {
	case patientID != "" && rcode != "":
		version, tested, err := s.query.PatientLatestVersion(ctx, patientID, rcode)
		if err != nil {
			return renderError(c, err)
		}
		resp := map[string]interface{}{
			"Patient_ID": patientID,
			"R_code":     rcode,
			"Tested":     tested,
		}
		if tested {
			resp["Version"] = version
		}
		return c.JSON(http.StatusOK, resp)
	case patientID != "":
		records, err := s.query.AllPatientRecords(ctx, patientID)
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(http.StatusOK, records)
	case rcode != "":
		records, err := s.query.AllPatientsForRcode(ctx, rcode)
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(http.StatusOK, records)
	default:
		return badRequest(c, "provide Patient_ID or R_code")
	}
}

// recordPatientTest serves POST /patient: reconcile the panel with the
// registry, then record that the patient was tested on the resulting
// version. A registry outage degrades to recording against the stored
// version, flagged in the response.
func (s *Server) recordPatientTest(c echo.Context) error {
	patientID := c.QueryParam("Patient_ID")
	rcode := c.QueryParam("R_code")
	if patientID == "" || rcode == "" {
		return badRequest(c, "provide Patient_ID and R_code")
	}
	if !rcodePattern.MatchString(rcode) {
		return badRequest(c, fmt.Sprintf("invalid R code %q", rcode))
	}

	ctx := c.Request().Context()
	recon, err := s.update.Reconcile(ctx, rcode)
	if err != nil {
		return renderError(c, err)
	}
	switch {
	case recon.RegistryUnavailable:
		metrics.ReconciliationsTotal.WithLabelValues("degraded").Inc()
		metrics.RegistryErrorsTotal.WithLabelValues("panelapp").Inc()
	case recon.Updated:
		metrics.ReconciliationsTotal.WithLabelValues("updated").Inc()
		metrics.ArchivesTotal.Inc()
	default:
		metrics.ReconciliationsTotal.WithLabelValues("noop").Inc()
	}

	version, present, err := s.update.CheckPresence(ctx, patientID, rcode)
	if err != nil {
		return renderError(c, err)
	}

	resp := map[string]interface{}{
		"Patient_ID": patientID,
		"R_code":     rcode,
		"Version":    version,
	}
	if recon.RegistryUnavailable {
		resp["Disclaimer"] = "The panel registry was unreachable; the stored panel version may be out of date."
	}
	if present {
		resp["Message"] = "Patient already has a record for the current panel version."
		return c.JSON(http.StatusOK, resp)
	}

	record, err := s.update.AddRecord(ctx, patientID, rcode)
	if err != nil {
		return renderError(c, err)
	}
	resp["Date"] = record.Date.Format("2006-01-02")
	return c.JSON(http.StatusCreated, resp)
}

// downgradePanel serves POST /panels/downgrade: force a panel back to an
// earlier registry version.
func (s *Server) downgradePanel(c echo.Context) error {
	rcode := c.QueryParam("R_code")
	versionParam := c.QueryParam("version")
	if rcode == "" || versionParam == "" {
		return badRequest(c, "provide R_code and version")
	}
	version, err := strconv.ParseFloat(versionParam, 64)
	if err != nil || version <= 0 {
		return badRequest(c, fmt.Sprintf("invalid version %q", versionParam))
	}

	ctx := c.Request().Context()
	panelID, err := s.query.RcodeToPanelID(ctx, rcode)
	if err != nil {
		return renderError(c, err)
	}

	payload, err := s.registry.PanelVersion(ctx, panelID, version)
	if err != nil {
		metrics.RegistryErrorsTotal.WithLabelValues("panelapp").Inc()
		return c.JSON(http.StatusBadGateway, map[string]string{
			"Message": "could not fetch the requested panel version from the registry",
		})
	}

	result, err := s.downgrade.Process(ctx, rcode, panelID, version, payload)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
