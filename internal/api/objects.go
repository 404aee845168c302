package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FairForge/metaapi/internal/codec"
	"github.com/FairForge/metaapi/internal/engine"
	"github.com/FairForge/metaapi/internal/schema"
)

// objectRoutes serves every registered type under its plural endpoint.
func (s *Server) objectRoutes(r chi.Router) {
	r.Get("/{type}", s.handleList)
	r.Post("/{type}", s.handleCreate)

	r.Get("/{type}/{id}", s.handleGet)
	r.Put("/{type}/{id}", s.handleReplace)
	r.Patch("/{type}/{id}", s.handlePatch)
	r.Delete("/{type}/{id}", s.handleDelete)

	r.Post("/{type}/{id}/favorite", s.handleFavorite(true))
	r.Delete("/{type}/{id}/favorite", s.handleFavorite(false))
	r.Post("/{type}/{id}/subscriber", s.handleSubscriber(true))
	r.Delete("/{type}/{id}/subscriber", s.handleSubscriber(false))
	r.Put("/{type}/{id}/sharing", s.handleSharing)
	r.Put("/{type}/{id}/translations", s.handleTranslations)

	r.Get("/{type}/{id}/{property}", s.handleGetProperty)
	r.Put("/{type}/{id}/{property}", s.handlePutProperty)
	r.Patch("/{type}/{id}/{property}", s.handlePatchProperty)
	r.Post("/{type}/{id}/{property}", s.handlePostItems)
	r.Delete("/{type}/{id}/{property}", s.handleDeleteItems)

	r.Get("/{type}/{id}/{property}/{itemId}", s.handleGetItem)
	r.Post("/{type}/{id}/{property}/{itemId}", s.handleAddItem)
	r.Delete("/{type}/{id}/{property}/{itemId}", s.handleRemoveItem)
}

// typeParam returns the type segment and records it for request metrics.
func typeParam(r *http.Request) string {
	name := chi.URLParam(r, "type")
	if info := infoFrom(r.Context()); info != nil {
		info.Type = name
	}
	return name
}

func (s *Server) readDocument(r *http.Request) (schema.Document, error) {
	f, err := codec.FromContentType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	doc, err := codec.Parse(r.Body, f)
	if err != nil {
		return nil, engine.ErrBadRequest(err, "Invalid request body")
	}
	return doc, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	p, err := engine.ParseParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.engine.List(r.Context(), typeParam(r), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, doc)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := engine.ParseParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.engine.Get(r.Context(), typeParam(r), chi.URLParam(r, "id"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, doc)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	typeName := typeParam(r)
	doc, err := s.readDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.engine.Create(r.Context(), typeName, doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, result)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, s.engine.Replace)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, s.engine.Patch)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, typeName, uid string, doc schema.Document) (*engine.WriteResult, error)) {
	typeName := typeParam(r)
	doc, err := s.readDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := apply(r.Context(), typeName, chi.URLParam(r, "id"), doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, result)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Delete(r.Context(), typeParam(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, result)
}

func (s *Server) handleFavorite(favorite bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		message, err := s.engine.SetFavorite(r.Context(), typeParam(r), chi.URLParam(r, "id"), favorite)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeMessage(w, r, newWebMessage(http.StatusOK, "OK", message))
	}
}

func (s *Server) handleSubscriber(subscribed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		message, err := s.engine.SetSubscribed(r.Context(), typeParam(r), chi.URLParam(r, "id"), subscribed)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeMessage(w, r, newWebMessage(http.StatusOK, "OK", message))
	}
}

func (s *Server) handleSharing(w http.ResponseWriter, r *http.Request) {
	typeName := typeParam(r)
	doc, err := s.readDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// accept both the bare settings and {"object": {...}}
	var body any = doc
	if inner, ok := doc["object"].(map[string]any); ok {
		body = inner
	}
	var sharing schema.Sharing
	if err := codec.Bind(body, &sharing); err != nil {
		s.writeError(w, r, engine.ErrBadRequest(err, "Invalid sharing settings"))
		return
	}
	result, err := s.engine.SetSharing(r.Context(), typeName, chi.URLParam(r, "id"), sharing)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, result)
}

func (s *Server) handleTranslations(w http.ResponseWriter, r *http.Request) {
	typeName := typeParam(r)
	doc, err := s.readDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	raw, ok := doc["translations"]
	if !ok {
		s.writeError(w, r, engine.ErrBadRequest(nil, "Payload must contain translations"))
		return
	}
	var translations []schema.Translation
	if err := codec.Bind(raw, &translations); err != nil {
		s.writeError(w, r, engine.ErrBadRequest(err, "Invalid translations"))
		return
	}
	result, err := s.engine.ReplaceTranslations(r.Context(), typeName, chi.URLParam(r, "id"), translations)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, result)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := engine.ParseParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.engine.GetProperty(r.Context(), typeParam(r), chi.URLParam(r, "id"), chi.URLParam(r, "property"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, doc)
}

// isCollection reports whether property names an owned collection, in
// which case PUT replaces its members instead of the property value.
func (s *Server) isCollection(typeName, property string) bool {
	sch, err := s.engine.Registry().Lookup(typeName)
	if err != nil {
		return false
	}
	prop, ok := sch.Property(property)
	return ok && prop.Kind == schema.KindCollection
}

func (s *Server) handlePutProperty(w http.ResponseWriter, r *http.Request) {
	typeName, property := typeParam(r), chi.URLParam(r, "property")
	if s.isCollection(typeName, property) {
		s.updateItems(w, r, engine.ItemPayload.Replacement)
		return
	}
	s.handlePatchProperty(w, r)
}

func (s *Server) handlePatchProperty(w http.ResponseWriter, r *http.Request) {
	typeName := typeParam(r)
	doc, err := s.readDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.engine.UpdateProperty(r.Context(), typeName, chi.URLParam(r, "id"), chi.URLParam(r, "property"), doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, result)
}

func (s *Server) handlePostItems(w http.ResponseWriter, r *http.Request) {
	s.updateItems(w, r, engine.ItemPayload.Changes)
}

func (s *Server) handleDeleteItems(w http.ResponseWriter, r *http.Request) {
	s.updateItems(w, r, engine.ItemPayload.Removal)
}

func (s *Server) updateItems(w http.ResponseWriter, r *http.Request, changes func(engine.ItemPayload) engine.ItemChanges) {
	typeName := typeParam(r)
	doc, err := s.readDocument(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload, err := engine.DecodeItemPayload(doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.engine.UpdateItems(r.Context(), typeName, chi.URLParam(r, "id"), chi.URLParam(r, "property"), changes(payload))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	p, err := engine.ParseParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.engine.GetCollectionItem(r.Context(), typeParam(r), chi.URLParam(r, "id"),
		chi.URLParam(r, "property"), chi.URLParam(r, "itemId"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, doc)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	err := s.engine.AddItem(r.Context(), typeParam(r), chi.URLParam(r, "id"),
		chi.URLParam(r, "property"), chi.URLParam(r, "itemId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	err := s.engine.RemoveItem(r.Context(), typeParam(r), chi.URLParam(r, "id"),
		chi.URLParam(r, "property"), chi.URLParam(r, "itemId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
