package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"quantumpay/config"
	"quantumpay/internal/handler"
	"quantumpay/internal/middleware"
	"quantumpay/internal/store"
	"quantumpay/pkg/payment"
)

func Setup(cfg *config.Config) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(5, 20))

	daraja := payment.NewDarajaClient(
		cfg.Daraja.ConsumerKey,
		cfg.Daraja.ConsumerSecret,
		cfg.Daraja.PassKey,
		cfg.Daraja.ShortCode,
		cfg.Daraja.BaseURL,
		cfg.Daraja.CallbackURL(),
	)
	outcomes := store.NewOutcomeStore(30 * time.Minute)

	mpesaHandler := handler.NewMpesaHandler(daraja, outcomes, payment.DefaultPollBudget)
	webhookHandler := handler.NewMpesaWebhookHandler(outcomes)

	api := r.Group("/api/v1")
	{
		api.POST("/payments/mpesa/initiate", mpesaHandler.Initiate)
		api.GET("/payments/mpesa/status/:checkout_request_id", mpesaHandler.Status)
		api.GET("/payments/mpesa/wait/:checkout_request_id", mpesaHandler.Wait)
		api.POST("/webhooks/mpesa", webhookHandler.Handle)
	}

	return r
}
