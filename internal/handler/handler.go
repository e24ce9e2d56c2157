package handler

import (
	"github.com/marianozunino/vanish/internal/config"
	"github.com/marianozunino/vanish/internal/share"
)

// Handler handles HTTP requests
type Handler struct {
	svc *share.Service
	cfg *config.Config
}

// NewHandler creates a new handler
func NewHandler(svc *share.Service, cfg *config.Config) *Handler {
	return &Handler{
		svc: svc,
		cfg: cfg,
	}
}
