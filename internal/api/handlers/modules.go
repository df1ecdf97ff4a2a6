package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/eventdeck/server/internal/api/envelope"
	"github.com/eventdeck/server/internal/domain/modules"
)

type ModulesHandler struct {
	Catalog *modules.Catalog
}

func NewModulesHandler(catalog *modules.Catalog) *ModulesHandler {
	return &ModulesHandler{Catalog: catalog}
}

type moduleList struct {
	Modules []modules.View `json:"modules"`
	Count   int            `json:"count"`
}

// List serves the catalog. Query: category, includeCode (default false),
// activeOnly (default true). Unparseable booleans fall back to the default.
func (h *ModulesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := modules.DefaultListFilter()
	filter.Category = strings.TrimSpace(q.Get("category"))
	filter.IncludeCode = queryBool(q.Get("includeCode"), filter.IncludeCode)
	filter.ActiveOnly = queryBool(q.Get("activeOnly"), filter.ActiveOnly)

	views := h.Catalog.List(filter)
	if views == nil {
		views = []modules.View{}
	}
	envelope.OK(w, envelope.MessageSuccess, moduleList{Modules: views, Count: len(views)})
}

func queryBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
