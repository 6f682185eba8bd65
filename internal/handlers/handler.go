// Package handlers contains the gateway's route handlers. Handlers validate
// and normalize at the edge, then delegate to the proxy forwarder; they hold
// no state of their own.
package handlers

import (
	"log/slog"

	"github.com/flightdeck/extractor-gateway/internal/config"
	"github.com/flightdeck/extractor-gateway/internal/identity"
	"github.com/flightdeck/extractor-gateway/internal/proxy"
	"github.com/flightdeck/extractor-gateway/internal/upload"
)

type Handler struct {
	logger    *slog.Logger
	validator *upload.Validator
	forwarder *proxy.Forwarder
	verifier  identity.Verifier
	cfg       *config.Config
}

func New(logger *slog.Logger, cfg *config.Config, validator *upload.Validator, forwarder *proxy.Forwarder, verifier identity.Verifier) *Handler {
	return &Handler{
		logger:    logger,
		validator: validator,
		forwarder: forwarder,
		verifier:  verifier,
		cfg:       cfg,
	}
}
