package adaptor

import (
	"net/http"

	"bus-booking/internal/dto/response"
	"bus-booking/pkg/utils"

	"go.uber.org/zap"
)

type CheckoutHandler struct {
	newToken func() string
	log      *zap.Logger
}

func NewCheckoutHandler(log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		newToken: utils.GenerateHolderToken,
		log:      log.With(zap.String("handler", "checkout")),
	}
}

// CreateSession handles POST /api/checkout-sessions
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	token := h.newToken()
	h.log.Debug("Checkout session issued")
	utils.ResponseCreated(w, "success", &response.CheckoutSessionResponse{HolderToken: token})
}
