package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/render"
	"github.com/Freeeeeet/tutor_marketplace/internal/service"
)

type saveLecturerRequest struct {
	ID             string              `json:"id"`
	Name           string              `json:"name" binding:"required"`
	Subject        string              `json:"subject"`
	Price          int                 `json:"price" binding:"gte=0"`
	Timezone       string              `json:"timezone" binding:"omitempty,timezone"`
	WeeklyTemplate map[string][]string `json:"weeklyTemplate" binding:"omitempty,dive,keys,weekday,endkeys,dive,hhmm"`
	CalendarICSURL string              `json:"calendarIcsUrl" binding:"omitempty,url"`
	TelegramChatID *int64              `json:"telegramChatId"`
}

type templateRequest struct {
	WeeklyTemplate map[string][]string `json:"weeklyTemplate" binding:"required,dive,keys,weekday,endkeys,dive,hhmm"`
}

type calendarRequest struct {
	ICSURL string `json:"icsUrl"`
}

type googleRequest struct {
	AccessToken  string    `json:"accessToken" binding:"required"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	Expiry       time.Time `json:"expiry"`
}

type publishRequest struct {
	Days int `json:"days"`
}

func (h *Handler) listLecturers(c *gin.Context) {
	lecturers, err := h.lecturers.ListLecturers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lecturers": lecturers})
}

func (h *Handler) getLecturer(c *gin.Context) {
	lecturer, err := h.lecturers.GetLecturer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lecturer)
}

func (h *Handler) saveLecturer(c *gin.Context) {
	var req saveLecturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	lecturer := &model.Lecturer{
		ID:             req.ID,
		Name:           req.Name,
		Subject:        req.Subject,
		Price:          req.Price,
		Timezone:       req.Timezone,
		WeeklyTemplate: req.WeeklyTemplate,
		CalendarICSURL: req.CalendarICSURL,
		TelegramChatID: req.TelegramChatID,
		IsActive:       true,
	}
	if err := h.lecturers.SaveLecturer(c.Request.Context(), lecturer); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, lecturer)
}

func (h *Handler) updateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	lecturer, err := h.lecturers.UpdateWeeklyTemplate(c.Request.Context(), c.Param("id"), req.WeeklyTemplate)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lecturer)
}

func (h *Handler) linkCalendar(c *gin.Context) {
	var req calendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	lecturer, err := h.lecturers.LinkCalendar(c.Request.Context(), c.Param("id"), req.ICSURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lecturer)
}

func (h *Handler) linkGoogle(c *gin.Context) {
	var req googleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	lecturer, err := h.lecturers.LinkGoogle(c.Request.Context(), c.Param("id"), model.OAuthToken{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    req.TokenType,
		Expiry:       req.Expiry,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lecturer": lecturer, "google_linked": lecturer.HasGoogleCalendar()})
}

func (h *Handler) unlinkGoogle(c *gin.Context) {
	lecturer, err := h.lecturers.UnlinkGoogle(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lecturer": lecturer, "google_linked": false})
}

// publish горизонт по умолчанию неделя, вне [1, 60] поджимается к границе
func (h *Handler) publish(c *gin.Context) {
	req := publishRequest{Days: service.DefaultHorizonDays}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
		if req.Days == 0 {
			req.Days = service.DefaultHorizonDays
		}
	}

	result, err := h.availability.Publish(c.Request.Context(), c.Param("id"), service.ClampHorizon(req.Days))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listAvailability(c *gin.Context) {
	days, err := h.availability.ListAvailability(c.Request.Context(), c.Param("id"), c.Query("from"), c.Query("to"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// busy from и to в RFC3339; по умолчанию неделя начиная с текущего момента
func (h *Handler) busy(c *gin.Context) {
	from := h.now().UTC()
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		from = t
	}
	to := from.AddDate(0, 0, service.DefaultHorizonDays)
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		to = t
	}

	busy, err := h.availability.Busy(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from": from,
		"to":   to,
		"busy": busy,
	})
}

// weekImage неделя доступности картинкой; from любая дата недели, по умолчанию текущая
func (h *Handler) weekImage(c *gin.Context) {
	ctx := c.Request.Context()

	lecturer, err := h.lecturers.GetLecturer(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	loc := lecturer.Location(h.defaultLoc)

	anchor := h.now().In(loc)
	if v := c.Query("from"); v != "" {
		anchor, err = time.ParseInLocation(model.DateLayout, v, loc)
		if err != nil {
			h.badRequest(c, err)
			return
		}
	}
	start := render.WeekStart(anchor)

	days, err := h.availability.ListAvailability(ctx, lecturer.ID,
		start.Format(model.DateLayout), start.AddDate(0, 0, 7).Format(model.DateLayout))
	if err != nil {
		h.fail(c, err)
		return
	}

	data, err := render.WeekPNG(render.Week{
		Title:         lecturer.Name,
		Start:         start,
		Days:          days,
		ClassDuration: h.availability.ClassDuration(),
		Now:           h.now(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}
