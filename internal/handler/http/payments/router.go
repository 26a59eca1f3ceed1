package payments_http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"storepay/internal/app/payments"
)

// NewRouter builds the service's HTTP surface with its middleware stack.
func NewRouter(s payments.PaymentService, allowedOrigins []string, l *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	RegisterRoutes(r, s, l)
	return r
}

func RegisterRoutes(r chi.Router, s payments.PaymentService, l *zap.Logger) {
	handler := NewPaymentHandler(s, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Payments service is healthy!"))
	})

	paymentRoutes := func(r chi.Router) {
		r.Post("/get-hash", handler.GetHashHandler)
		r.Post("/notify", handler.NotifyHandler)
		r.Get("/status/{orderId}", handler.GetPaymentStatusHandler)
	}
	r.Route("/payment", paymentRoutes)
	r.Route("/api/payment", paymentRoutes)
}
