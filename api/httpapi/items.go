// Package httpapi serves item writes over HTTP, so tools can write
// through the store handle a running server already holds.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"ddbstream/domain/changelog"
)

// ItemsPath is where items are written.
const ItemsPath = "/v1/items"

// Writer puts an item into the store.
type Writer interface {
	PutItem(ctx context.Context, item changelog.Item) error
}

// ItemsController handles POST /v1/items.
type ItemsController struct {
	writer Writer
	log    *slog.Logger
}

func NewItemsController(w Writer, logger *slog.Logger) *ItemsController {
	return &ItemsController{writer: w, log: logger}
}

// RegisterRoutes mounts the controller on mux.
func (c *ItemsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(ItemsPath, c.handlePut)
}

func (c *ItemsController) handlePut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var item changelog.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if item.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := c.writer.PutItem(r.Context(), item); err != nil {
		c.log.Warn("put item failed", "id", item.ID, "err", err)
		status := http.StatusInternalServerError
		if changelog.IsConnectivity(err) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	c.log.Debug("item written", "id", item.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(item)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
