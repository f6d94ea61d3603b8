package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AttachRequestMetadata)
	r.Use(middleware.Recoverer)

	r.Post("/orders", handler.PlaceOrder)
	r.Get("/orders/{number}", handler.GetOrderByNumber)

	return otelhttp.NewHandler(r, "checkout")
}
