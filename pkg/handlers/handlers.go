package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/arnavshah/pharmacal-api/pkg/auth"
	"github.com/arnavshah/pharmacal-api/pkg/booking"
	"github.com/arnavshah/pharmacal-api/pkg/config"
	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/metrics"
	"github.com/arnavshah/pharmacal-api/pkg/models"
	"github.com/arnavshah/pharmacal-api/pkg/notify"
	"github.com/arnavshah/pharmacal-api/pkg/reconciler"
)

// Store is everything the HTTP surface reads and writes. Both the gorm
// store and the in-memory store satisfy it.
type Store interface {
	reconciler.SlotStore
	booking.Store
	auth.AdminStore

	ListSlots(ctx context.Context, from, to time.Time) ([]models.Slot, error)
	ImportSlot(ctx context.Context, slot models.Slot) error
	Roster(ctx context.Context) ([]string, error)

	UpsertStaff(ctx context.Context, m models.StaffMember) error
	ListStaff(ctx context.Context) ([]models.StaffMember, error)
	DeleteStaff(ctx context.Context, name, email string) error

	AddRequester(ctx context.Context, r models.Requester) error
	ListRequesters(ctx context.Context) ([]models.Requester, error)
	DeleteRequester(ctx context.Context, name, email string) error

	AddCoverRequest(ctx context.Context, req models.CoverRequest) error
	ListCoverRequests(ctx context.Context) ([]models.CoverRequest, error)
}

// Handler contains dependencies for the route handlers
type Handler struct {
	Store      Store
	Reconciler *reconciler.Reconciler
	Booking    *booking.Service
	Auth       *auth.Authenticator
	Calendar   config.CalendarConfig
	CORS       config.CORSConfig
	Hours      models.SessionHours
	Logger     *zap.Logger

	validate *validator.Validate
	location *time.Location
	now      func() time.Time
}

// New wires the handler and the services behind it.
func New(cfg *config.Config, store Store, notifier notify.Notifier, logger *zap.Logger, m *metrics.Metrics) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		return nil, err
	}
	hours := SessionHours(cfg.Calendar, loc)

	return &Handler{
		Store:      store,
		Reconciler: reconciler.New(store, logger.Named("reconciler"), m),
		Booking:    booking.NewService(store, notifier, logger.Named("booking"), m),
		Auth:       auth.New(cfg),
		Calendar:   cfg.Calendar,
		CORS:       cfg.CORS,
		Hours:      hours,
		Logger:     logger,
		validate:   validator.New(),
		location:   loc,
		now:        time.Now,
	}, nil
}

// SessionHours converts calendar config into session times.
func SessionHours(cal config.CalendarConfig, loc *time.Location) models.SessionHours {
	return models.SessionHours{
		AMStart:  cal.AMStart,
		AMEnd:    cal.AMEnd,
		PMStart:  cal.PMStart,
		PMEnd:    cal.PMEnd,
		Location: loc,
	}
}

// Notifier picks Resend delivery when enabled and a log-only mailer otherwise.
func Notifier(cfg *config.Config, logger *zap.Logger) notify.Notifier {
	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		loc = time.UTC
	}

	var mailer notify.Mailer = notify.NewLogMailer(logger.Named("mail"))
	if cfg.Notify.Enabled {
		mailer = notify.NewResendMailer(cfg.Notify.ResendAPIKey, cfg.Notify.From)
	}
	return notify.NewDispatcher(mailer, SessionHours(cfg.Calendar, loc), logger.Named("notify"))
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := h.Auth.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

func bearer(c *gin.Context) string {
	token := c.GetHeader("Authorization")
	// Strip "Bearer " if present
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}

func (h *Handler) isAdmin(c *gin.Context) bool {
	token := bearer(c)
	if token == "" {
		return false
	}
	_, err := h.Auth.VerifyToken(token)
	return err == nil
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.Auth.Login(c.Request.Context(), h.Store, req.Username, req.Password)
	if err != nil {
		h.Logger.Info("admin login refused", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// respondError writes the error body and status for a core error.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": errs.Message(err), "code": errs.Code(err)})
}

func (h *Handler) today() time.Time {
	return models.CalendarDay(h.now().In(h.location))
}

// maxWindowDays caps the span a single request may cover.
const maxWindowDays = 366

// window parses from/to query parameters, defaulting to today through the
// booking horizon.
func (h *Handler) window(c *gin.Context) (time.Time, time.Time, error) {
	from := h.today()
	to := from.AddDate(0, 0, h.Calendar.HorizonDays)

	if raw := c.Query("from"); raw != "" {
		t, err := models.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := models.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	if err := checkWindow(from, to); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func checkWindow(from, to time.Time) error {
	if to.Before(from) {
		return errs.Validation("window end %s is before start %s",
			to.Format(models.DateLayout), from.Format(models.DateLayout))
	}
	if to.After(from.AddDate(0, 0, maxWindowDays)) {
		return errs.Validation("window %s..%s is longer than %d days",
			from.Format(models.DateLayout), to.Format(models.DateLayout), maxWindowDays)
	}
	return nil
}

// check runs struct validation and returns a validation error naming the
// failed fields.
func (h *Handler) check(v interface{}) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errs.Mark(err, errs.ErrValidation)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
	}
	return errs.Validation("invalid fields: %s", strings.Join(fields, ", "))
}
