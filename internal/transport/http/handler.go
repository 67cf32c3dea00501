package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"event-rewards-service/internal/app"
	"event-rewards-service/internal/domain"
)

// participantHeader carries the identity installed by upstream auth.
// The core never issues or validates credentials.
const participantHeader = "X-Participant-ID"

// Handler wires the participation and rewards use cases into the REST API.
type Handler struct {
	participation *app.ParticipationService
	rewards       *app.RewardsService
	ledger        app.Ledger
	feed          *app.Broadcaster
	ready         func(ctx context.Context) error
}

func NewHandler(participation *app.ParticipationService, rewards *app.RewardsService, ledger app.Ledger, feed *app.Broadcaster, ready func(ctx context.Context) error) *Handler {
	return &Handler{
		participation: participation,
		rewards:       rewards,
		ledger:        ledger,
		feed:          feed,
		ready:         ready,
	}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if h.ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			defer cancel()
			if err := h.ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/ws", h.serveWS)

	api := r.Group("/api")
	api.Use(requireParticipant())

	api.GET("/events", h.listEvents)
	api.GET("/events/:id", h.getEvent)
	api.POST("/events/:id/start", h.startEvent)
	api.POST("/events/:id/answer", h.recordAnswer)
	api.POST("/events/:id/submit-quiz", h.submitQuiz)
	api.POST("/events/:id/complete", h.completeEvent)
	api.POST("/events/:id/feedback", h.submitFeedback)
	api.POST("/events/:id/feedback/skip", h.skipFeedback)
	api.GET("/completed-events", h.completedEvents)
	api.GET("/points", h.points)
	api.GET("/merchandise", h.listMerchandise)
	api.GET("/merchandise/:id", h.getMerchandise)
	api.POST("/merchandise/:id/purchase", h.purchase)
	api.GET("/orders", h.listOrders)
	api.GET("/orders/:id", h.getOrder)

	return r
}

// requireParticipant rejects requests without an authenticated identity.
func requireParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		pid := c.GetHeader(participantHeader)
		if pid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing participant identity"})
			return
		}
		c.Set("participantID", pid)
		c.Next()
	}
}

func participantID(c *gin.Context) string {
	return c.GetString("participantID")
}

// writeError maps domain errors to HTTP statuses with a stable code.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrMerchNotFound),
		errors.Is(err, domain.ErrParticipationNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NOT_FOUND"})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "INVALID_STATE"})
	case errors.Is(err, domain.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "INSUFFICIENT_STOCK"})
	case errors.Is(err, domain.ErrMerchUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "NOT_AVAILABLE"})
	case errors.Is(err, domain.ErrInsufficientFunds):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "INSUFFICIENT_FUNDS"})
	case errors.Is(err, domain.ErrEmptyQuiz):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "CONFIGURATION_ERROR"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) listEvents(c *gin.Context) {
	listings, err := h.participation.ListEvents(c.Request.Context(), participantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": listings})
}

func (h *Handler) getEvent(c *gin.Context) {
	listing, err := h.participation.GetEvent(c.Request.Context(), participantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *Handler) startEvent(c *gin.Context) {
	event, rec, err := h.participation.Start(c.Request.Context(), participantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event, "participation": rec})
}

type answerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	AnswerID   string `json:"answer_id" binding:"required"`
}

func (h *Handler) recordAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question_id and answer_id required"})
		return
	}
	rec, err := h.participation.RecordAnswer(c.Request.Context(), participantID(c), c.Param("id"), req.QuestionID, req.AnswerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participation": rec})
}

type submitQuizRequest struct {
	Answers map[string]string `json:"answers"`
}

func (h *Handler) submitQuiz(c *gin.Context) {
	var req submitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	pid := participantID(c)
	result, rec, err := h.participation.SubmitQuiz(c.Request.Context(), pid, c.Param("id"), req.Answers)
	if err != nil {
		writeError(c, err)
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), pid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "participation": rec, "balance": balance})
}

func (h *Handler) completeEvent(c *gin.Context) {
	pid := participantID(c)
	rec, err := h.participation.Complete(c.Request.Context(), pid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), pid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participation": rec, "balance": balance})
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) submitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}
	rec, err := h.participation.SubmitFeedback(c.Request.Context(), participantID(c), c.Param("id"), req.Rating, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participation": rec})
}

func (h *Handler) skipFeedback(c *gin.Context) {
	rec, err := h.participation.SkipFeedback(c.Request.Context(), participantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participation": rec})
}

func (h *Handler) completedEvents(c *gin.Context) {
	records, err := h.participation.CompletedEvents(c.Request.Context(), participantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": records})
}

func (h *Handler) points(c *gin.Context) {
	pid := participantID(c)
	ctx := c.Request.Context()
	balance, err := h.ledger.Balance(ctx, pid)
	if err != nil {
		writeError(c, err)
		return
	}
	history, err := h.ledger.History(ctx, pid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "history": history})
}

func (h *Handler) listMerchandise(c *gin.Context) {
	listings, err := h.rewards.ListMerchandise(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"merchandise": listings})
}

func (h *Handler) getMerchandise(c *gin.Context) {
	listing, err := h.rewards.GetMerchandise(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

type purchaseRequest struct {
	Quantity        int    `json:"quantity" binding:"required"`
	DeliveryAddress string `json:"delivery_address" binding:"required"`
	Phone           string `json:"phone"`
	Notes           string `json:"notes"`
}

func (h *Handler) purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity and delivery_address required"})
		return
	}
	if req.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
		return
	}

	delivery := domain.Delivery{Address: req.DeliveryAddress, Phone: req.Phone, Notes: req.Notes}
	order, balance, err := h.rewards.Purchase(c.Request.Context(), participantID(c), c.Param("id"), req.Quantity, delivery, c.GetHeader("Idempotency-Key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order, "remaining_points": balance})
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.rewards.Orders(c.Request.Context(), participantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.rewards.Order(c.Request.Context(), participantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
