// Package httpapi HTTP-интерфейс ядра расписания на gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_marketplace/internal/app"
	"github.com/Freeeeeet/tutor_marketplace/internal/service"
)

// HealthChecker состояние зависимостей для /healthz
type HealthChecker interface {
	Check(ctx context.Context) app.HealthStatus
}

// Deps зависимости HTTP-слоя
type Deps struct {
	Lecturers    *service.LecturerService
	Availability *service.AvailabilityService
	Ledger       *service.Ledger
	Bookings     *service.BookingService
	Health       HealthChecker

	// DefaultLocation для преподавателей без часового пояса (экспорт ICS)
	DefaultLocation *time.Location
	// RateLimitPerMinute лимит изменяющих запросов с одного IP, 0 выключает
	RateLimitPerMinute int
	// TrustedProxies адреса или CIDR прокси, чьим X-Forwarded-For можно верить; пусто значит никому
	TrustedProxies     []string
	Now                service.Clock
	Logger             *zap.Logger
}

type Handler struct {
	lecturers    *service.LecturerService
	availability *service.AvailabilityService
	ledger       *service.Ledger
	bookings     *service.BookingService
	health       HealthChecker
	defaultLoc   *time.Location
	limiter      *ipRateLimiter
	proxies      []string
	now          service.Clock
	logger       *zap.Logger
}

func NewHandler(d Deps) *Handler {
	registerValidators()

	if d.DefaultLocation == nil {
		d.DefaultLocation = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	return &Handler{
		lecturers:    d.Lecturers,
		availability: d.Availability,
		ledger:       d.Ledger,
		bookings:     d.Bookings,
		health:       d.Health,
		defaultLoc:   d.DefaultLocation,
		limiter:      newIPRateLimiter(d.RateLimitPerMinute),
		proxies:      d.TrustedProxies,
		now:          d.Now,
		logger:       d.Logger,
	}
}

// Router собирает gin.Engine со всеми маршрутами
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(h.proxies); err != nil {
		h.logger.Error("Invalid trusted proxies, forwarded headers ignored", zap.Strings("proxies", h.proxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.logger))

	r.GET("/healthz", h.healthz)

	api := r.Group("/api")

	lecturers := api.Group("/lecturers")
	{
		lecturers.GET("", h.listLecturers)
		lecturers.GET("/:id", h.getLecturer)
		lecturers.GET("/:id/availability", h.listAvailability)
		lecturers.GET("/:id/busy", h.busy)
		lecturers.GET("/:id/week.png", h.weekImage)

		write := lecturers.Group("")
		write.Use(h.limiter.middleware(h.logger))
		write.POST("", h.saveLecturer)
		write.PUT("/:id/template", h.updateTemplate)
		write.PUT("/:id/calendar", h.linkCalendar)
		write.PUT("/:id/google", h.linkGoogle)
		write.DELETE("/:id/google", h.unlinkGoogle)
		write.POST("/:id/publish", h.publish)
	}

	api.POST("/availability/:availabilityId/slots/:slotId/book", h.limiter.middleware(h.logger), h.book)

	bookings := api.Group("/bookings")
	{
		bookings.GET("", h.listBookings)
		bookings.GET("/pending-payments", h.pendingPayments)
		bookings.GET("/:id", h.getBooking)
		bookings.GET("/:id/activity", h.activity)
		bookings.GET("/:id/ics", h.exportICS)

		write := bookings.Group("")
		write.Use(h.limiter.middleware(h.logger))
		write.POST("/:id/reschedule", h.reschedule)
		write.PATCH("/:id/status", h.updateStatus)
		write.POST("/:id/approve", h.approve)
		write.POST("/:id/reject", h.reject)
		write.POST("/:id/cancel", h.cancel)
	}

	return r
}

func (h *Handler) healthz(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	status := h.health.Check(c.Request.Context())
	if !status.OK() {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
