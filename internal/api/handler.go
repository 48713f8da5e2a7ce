package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"smart-lighting-backend/internal/detect"
	"smart-lighting-backend/internal/monitor"
	"smart-lighting-backend/internal/store"
	"smart-lighting-backend/internal/ws"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store         store.Store
	aggregator    *monitor.Aggregator
	reconciler    *monitor.Reconciler
	detector      detect.Client
	uploadTimeout time.Duration
	webpush       *webpush.Options
	hub           *ws.Hub
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, agg *monitor.Aggregator, rec *monitor.Reconciler, detector detect.Client, uploadTimeout time.Duration, webpushOptions *webpush.Options, hub *ws.Hub) *Handler {
	return &Handler{
		store:         s,
		aggregator:    agg,
		reconciler:    rec,
		detector:      detector,
		uploadTimeout: uploadTimeout,
		webpush:       webpushOptions,
		hub:           hub,
	}
}
