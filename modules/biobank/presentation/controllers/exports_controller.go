package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/arcadia-bio/biocore/modules/biobank/services"
	"github.com/arcadia-bio/biocore/pkg/application"
)

// ExportsAPIController triggers an export batch on demand. The same run is
// normally driven by the biobank CLI's export command on a schedule.
type ExportsAPIController struct {
	app      application.Application
	exports  *services.ExportService
	basePath string
}

func NewExportsAPIController(app application.Application) application.Controller {
	return &ExportsAPIController{
		app:      app,
		exports:  app.Service(services.ExportService{}).(*services.ExportService),
		basePath: "/biobank/api",
	}
}

func (c *ExportsAPIController) Key() string {
	return c.basePath + "/exports"
}

func (c *ExportsAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/exports", c.Run).Methods(http.MethodPost)
}

func (c *ExportsAPIController) Run(w http.ResponseWriter, r *http.Request) {
	report, err := c.exports.Run(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	artifacts := make([]map[string]any, 0, len(report.Artifacts))
	for _, a := range report.Artifacts {
		artifacts = append(artifacts, map[string]any{
			"id":          a.ID,
			"blob_key":    a.BlobKey,
			"sha256":      a.SHA256,
			"entry_count": a.EntryCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":   report.Entries,
		"artifacts": artifacts,
	})
}
