package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/FairForge/metaapi/internal/engine"
	"github.com/FairForge/metaapi/internal/importer"
)

func (s *Server) metadataRoutes(r chi.Router) {
	r.Get("/metadata", s.handleExport)
	r.Post("/metadata", s.handleImport)
	r.Post("/metadata/export", s.handleArchive)
	r.Get("/schemas", s.handleSchemas)
	r.Get("/schemas/{type}", s.handleSchema)
}

// exportArgs reads ?types=a,b&fields=...
func exportArgs(r *http.Request) (types, fields []string) {
	q := r.URL.Query()
	for _, v := range q["types"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}
	return types, q["fields"]
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	types, fields := exportArgs(r)
	doc, err := s.engine.Export(r.Context(), types, fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, doc)
}

func importParams(r *http.Request) (importer.Params, error) {
	q := r.URL.Query()
	var p importer.Params
	var err error
	if p.Strategy, err = importer.ParseStrategy(q.Get("importStrategy")); err != nil {
		return p, engine.ErrBadRequest(err, "Invalid importStrategy")
	}
	if p.AtomicMode, err = importer.ParseAtomicMode(q.Get("atomicMode")); err != nil {
		return p, engine.ErrBadRequest(err, "Invalid atomicMode")
	}
	if p.ReportMode, err = importer.ParseReportMode(q.Get("importReportMode")); err != nil {
		return p, engine.ErrBadRequest(err, "Invalid importReportMode")
	}
	return p, nil
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	params, err := importParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.readDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.engine.ImportMetadata(r.Context(), doc, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeReport(w, r, http.StatusOK, report)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		s.writeError(w, r, engine.ErrConflict("Metadata export storage is not configured"))
		return
	}
	types, fields := exportArgs(r)
	archive, err := s.archiver.Archive(r.Context(), types, fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg := newWebMessage(http.StatusCreated, "OK", "Metadata exported to "+archive.Key)
	msg.Response = archive
	s.writeMessage(w, r, msg)
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, s.engine.Schemas())
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	doc, err := s.engine.Schema(chi.URLParam(r, "type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, doc)
}
