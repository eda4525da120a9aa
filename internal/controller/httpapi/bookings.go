package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/tutor_marketplace/internal/calendar"
	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"github.com/Freeeeeet/tutor_marketplace/internal/service"
)

type bookRequest struct {
	StudentID     string              `json:"studentId" binding:"required"`
	StudentName   string              `json:"studentName"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod" binding:"omitempty,oneof=CARD RECEIPT"`
	ReceiptURL    string              `json:"receiptUrl" binding:"omitempty,url"`
}

type rescheduleRequest struct {
	OldAvailabilityID string `json:"oldAvailabilityId"`
	OldSlotID         string `json:"oldSlotId"`
	NewAvailabilityID string `json:"newAvailabilityId" binding:"required"`
	NewSlotID         string `json:"newSlotId" binding:"required"`
	NewDate           string `json:"newDate" binding:"omitempty,ymd"`
	NewTime           string `json:"newTime" binding:"omitempty,hhmm"`
}

type statusRequest struct {
	Status        *model.BookingStatus `json:"status" binding:"omitempty,oneof=PENDING CONFIRMED CANCELLED"`
	PaymentStatus *model.PaymentStatus `json:"paymentStatus" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
}

func (h *Handler) book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.ledger.ReserveAndBook(c.Request.Context(), c.Param("availabilityId"), c.Param("slotId"), service.BookingInput{
		StudentID:     req.StudentID,
		StudentName:   req.StudentName,
		PaymentMethod: req.PaymentMethod,
		ReceiptURL:    req.ReceiptURL,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h *Handler) reschedule(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.ledger.Reschedule(c.Request.Context(), service.RescheduleInput{
		BookingID:         c.Param("id"),
		OldAvailabilityID: req.OldAvailabilityID,
		OldSlotID:         req.OldSlotID,
		NewAvailabilityID: req.NewAvailabilityID,
		NewSlotID:         req.NewSlotID,
		NewDate:           req.NewDate,
		NewTime:           req.NewTime,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.ledger.UpdateStatus(c.Request.Context(), c.Param("id"), service.StatusPatch{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *Handler) approve(c *gin.Context) {
	h.respondBooking(c)(h.ledger.ApprovePayment(c.Request.Context(), c.Param("id")))
}

func (h *Handler) reject(c *gin.Context) {
	h.respondBooking(c)(h.ledger.RejectPayment(c.Request.Context(), c.Param("id")))
}

func (h *Handler) cancel(c *gin.Context) {
	h.respondBooking(c)(h.ledger.Cancel(c.Request.Context(), c.Param("id")))
}

func (h *Handler) respondBooking(c *gin.Context) func(*model.Booking, error) {
	return func(booking *model.Booking, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, booking)
	}
}

func (h *Handler) listBookings(c *gin.Context) {
	filter := model.BookingFilter{
		StudentID:     c.Query("studentId"),
		LecturerID:    c.Query("lecturerId"),
		Status:        model.BookingStatus(c.Query("status")),
		PaymentStatus: model.PaymentStatus(c.Query("paymentStatus")),
		PaymentMethod: model.PaymentMethod(c.Query("paymentMethod")),
	}

	bookings, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *Handler) pendingPayments(c *gin.Context) {
	bookings, err := h.bookings.ListPendingPayments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *Handler) getBooking(c *gin.Context) {
	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *Handler) activity(c *gin.Context) {
	entries, err := h.bookings.Activity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

// exportICS занятие одним VEVENT во времени преподавателя
func (h *Handler) exportICS(c *gin.Context) {
	ctx := c.Request.Context()

	booking, err := h.bookings.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	loc := h.defaultLoc
	lecturer, err := h.lecturers.GetLecturer(ctx, booking.LecturerID)
	if err == nil {
		loc = lecturer.Location(h.defaultLoc)
	}

	data, err := calendar.ExportBooking(booking, loc, h.availability.ClassDuration(), h.now())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="booking-%s.ics"`, booking.ID))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}
