package handler

import (
	"net/http"

	"github.com/dukerupert/manutenzioni/internal/directory"
)

type DirectoryHandler struct {
	sections []directory.Section
}

func NewDirectoryHandler(sections []directory.Section) *DirectoryHandler {
	if sections == nil {
		sections = []directory.Section{}
	}
	return &DirectoryHandler{sections: sections}
}

func (h *DirectoryHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sections)
}
