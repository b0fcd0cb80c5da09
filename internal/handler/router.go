package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/pizzeria/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса заказа пиццы.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(h.metrics.Middleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.DecompressRequest(maxBodyBytes))
	r.Use(chimiddleware.Compress(5, "application/json", "text/html"))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.SignUp)
		r.Post("/login", h.Login)

		r.With(h.authMiddleware.RefreshMiddleware).Get("/refresh", h.Refresh)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/", h.Hello)

		r.Post("/order", h.PlaceOrder)
		r.Put("/order/update/{id}", h.UpdateOrder)
		r.Patch("/order/status/{id}", h.UpdateOrderStatus)
		r.Delete("/order/delete/{id}", h.DeleteOrder)

		r.Get("/orders", h.ListAllOrders)
		r.Get("/orders/{id}", h.GetOrderByID)

		r.Get("/user/orders", h.ListMyOrders)
		r.Get("/user/order/{id}", h.GetMyOrderByID)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
