// Package api exposes the panel, patient and BED endpoints over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/panelhub/paneltrack/internal/bed"
	"github.com/panelhub/paneltrack/internal/metrics"
	"github.com/panelhub/paneltrack/internal/models"
	"github.com/panelhub/paneltrack/internal/repositories"
)

// CoordinateSource resolves gene identifiers to exon coordinates.
// Satisfied by the variantvalidator client.
type CoordinateSource interface {
	GeneRegions(ctx context.Context, geneQuery string, build models.GenomeBuild, transcriptSet, limitTranscripts string) ([]bed.Row, error)
}

// Server wires the HTTP surface to the domain components.
type Server struct {
	echo         *echo.Echo
	query        *repositories.Query
	update       *repositories.Update
	downgrade    *repositories.Downgrade
	registry     repositories.Registry
	coords       CoordinateSource
	problemGenes map[string]struct{}
	log          zerolog.Logger
}

// NewServer builds the server and registers all routes.
func NewServer(db *bun.DB, registry repositories.Registry, coords CoordinateSource, problemGenes map[string]struct{}, logger zerolog.Logger) *Server {
	s := &Server{
		echo:         echo.New(),
		query:        repositories.NewQuery(db),
		update:       repositories.NewUpdate(db, registry, logger),
		downgrade:    repositories.NewDowngrade(db, logger),
		registry:     registry,
		coords:       coords,
		problemGenes: problemGenes,
		log:          logger,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(Recovery(logger))
	e.Use(RequestID())
	e.Use(Logger(logger))
	e.Use(Metrics())

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	panels := e.Group("/panels")
	panels.GET("", s.searchPanels)
	panels.GET("/genes", s.panelGenes)
	panels.GET("/download", s.downloadBed)
	panels.POST("/downgrade", s.downgradePanel)

	patient := e.Group("/patient")
	patient.GET("", s.patientHistory)
	patient.POST("", s.recordPatientTest)

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("http server starting")
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
