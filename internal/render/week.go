// Package render рисует недельную сетку доступности преподавателя в PNG.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
)

// Константы размеров и отступов
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 120
	dayPaddingX      = 8
	minSlotHeight    = 8.0
	slotBorderRadius = 6.0
	shadowOffset     = 3.0
	daysInWeek       = 7
	hourPadding      = 1
)

// Цветовая схема
var (
	bgColor        = color.RGBA{245, 246, 248, 255}
	textColor      = color.RGBA{80, 85, 90, 220}
	hourLabelColor = color.RGBA{110, 115, 120, 200}
	hourLineColor  = color.NRGBA{150, 150, 150, 255}
	todayBgColor   = color.NRGBA{255, 99, 71, 125}
	evenDayColor   = color.NRGBA{240, 240, 240, 255}
	oddDayColor    = color.NRGBA{220, 220, 220, 255}
	nowLineColor   = color.NRGBA{255, 80, 80, 200}

	slotFreeColor     = color.RGBA{133, 193, 85, 220}
	slotTakenColor    = color.RGBA{255, 182, 193, 255}
	slotTextColor     = color.RGBA{20, 24, 28, 230}
	slotTakenText     = color.RGBA{120, 40, 50, 255}
	slotShadowColor   = color.RGBA{0, 0, 0, 20}
	legendItemColor   = color.RGBA{70, 74, 78, 220}
	slotBorderDarkens = 0.8
)

// Week параметры недельной картинки
type Week struct {
	Title         string
	Start         time.Time // понедельник 00:00 в часовом поясе преподавателя
	Days          []*model.AvailabilityDay
	ClassDuration time.Duration
	Now           time.Time
}

type hourRange struct {
	start int
	end   int
	total int
}

// placedSlot слот с вычисленным временем начала
type placedSlot struct {
	start     time.Time
	end       time.Time
	label     string
	available bool
}

// WeekStart понедельник недели, в которую попадает t
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := int(day.Weekday()) - 1
	if day.Weekday() == time.Sunday {
		offset = 6
	}
	return day.AddDate(0, 0, -offset)
}

// WeekPNG рисует 7 колонок с Пн по Вс: свободные слоты зелёные, занятые розовые
func WeekPNG(w Week) ([]byte, error) {
	loc := w.Start.Location()
	slotsByDate := make(map[string][]placedSlot, len(w.Days))
	for _, day := range w.Days {
		for _, slot := range day.TimeSlots {
			start, err := model.SlotStart(day.Date, slot.Time, loc)
			if err != nil {
				return nil, fmt.Errorf("render week: %w", err)
			}
			slotsByDate[day.Date] = append(slotsByDate[day.Date], placedSlot{
				start:     start,
				end:       start.Add(w.ClassDuration),
				label:     slot.Time,
				available: slot.Available,
			})
		}
	}

	hours := hoursFor(slotsByDate)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / daysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, w)
	drawHourLabels(dc, hours, cellHeight)

	now := w.Now.In(loc)
	for i := 0; i < daysInWeek; i++ {
		date := w.Start.AddDate(0, 0, i)
		x := float64(leftLabelsWidth + i*dayWidth)
		y := float64(headerHeight)
		isToday := sameDay(date, now)

		drawDayBackground(dc, x, y, dayWidth, dayHeight, i, isToday)
		drawDayHeader(dc, date, x, y, dayWidth)
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)
		for _, slot := range slotsByDate[date.Format(model.DateLayout)] {
			drawSlot(dc, slot, x, y, dayWidth, hours, cellHeight)
		}
		if isToday {
			drawNowLine(dc, now, hours, cellHeight, dayWidth)
		}
	}

	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode week png: %w", err)
	}
	return buf.Bytes(), nil
}

// hoursFor диапазон часов по слотам с небольшим запасом; без слотов рабочий день
func hoursFor(slotsByDate map[string][]placedSlot) hourRange {
	minHour, maxHour := 24, 0
	for _, slots := range slotsByDate {
		for _, s := range slots {
			endHour := s.end.Hour()
			if s.end.Minute() > 0 {
				endHour++
			}
			// занятие через полночь дорисовываем до конца суток
			if !sameDay(s.start, s.end) {
				endHour = 24
			}
			minHour = min(minHour, s.start.Hour())
			maxHour = max(maxHour, endHour)
		}
	}
	if minHour == 24 {
		minHour, maxHour = 8, 20
	}

	start := max(minHour-hourPadding, 0)
	end := min(maxHour+hourPadding, 24)
	return hourRange{start: start, end: end, total: end - start}
}

func drawHeader(dc *gg.Context, w Week) {
	end := w.Start.AddDate(0, 0, daysInWeek-1)
	title := fmt.Sprintf("%s  %s - %s", w.Title, w.Start.Format("02 Jan"), end.Format("02 Jan 2006"))

	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, float64(leftLabelsWidth), float64(headerHeight)/4, 0, 0.5)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	dc.SetColor(hourLabelColor)
	for i := 0; i <= hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", hours.start+i), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, index int, isToday bool) {
	switch {
	case isToday:
		dc.SetColor(todayBgColor)
	case index%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

func drawDayHeader(dc *gg.Context, date time.Time, x, y float64, dayWidth int) {
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Format("02.01"), x+float64(dayWidth)/2, y-30, 0.5, 0.5)
	dc.DrawStringAnchored(date.Weekday().String()[:3], x+float64(dayWidth)/2, y-12, 0.5, 0.5)
}

func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)
	for i := 0; i <= hours.total; i++ {
		hy := y + float64(i)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

func drawSlot(dc *gg.Context, slot placedSlot, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	startHour := hourOf(slot.start)
	endHour := startHour + slot.end.Sub(slot.start).Hours()

	slotY := y + (startHour-float64(hours.start))*cellHeight
	slotHeight := max((endHour-startHour)*cellHeight, minSlotHeight)
	slotWidth := float64(dayWidth - dayPaddingX*2)

	fill, text := slotFreeColor, slotTextColor
	if !slot.available {
		fill, text = slotTakenColor, slotTakenText
	}

	// Тень
	dc.SetColor(slotShadowColor)
	dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, slotY+2+shadowOffset, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x+dayPaddingX, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(darken(fill, slotBorderDarkens))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x+dayPaddingX, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Stroke()

	dc.SetColor(text)
	dc.DrawStringAnchored(slot.label, x+dayPaddingX+8, slotY+14, 0, 0.5)
}

func drawNowLine(dc *gg.Context, now time.Time, hours hourRange, cellHeight float64, dayWidth int) {
	h := hourOf(now)
	if h < float64(hours.start) || h > float64(hours.end) {
		return
	}

	y := float64(headerHeight) + (h-float64(hours.start))*cellHeight
	dc.SetColor(nowLineColor)
	dc.SetLineWidth(2)
	dc.DrawLine(float64(leftLabelsWidth), y, float64(leftLabelsWidth+daysInWeek*dayWidth), y)
	dc.Stroke()
}

func drawLegend(dc *gg.Context, dayWidth int) {
	x := float64(leftLabelsWidth + daysInWeek*dayWidth + 10)
	y := float64(imageHeight) - 80

	items := []struct {
		label string
		clr   color.Color
	}{
		{"Free", slotFreeColor},
		{"Taken", slotTakenColor},
	}

	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(x, y, 20, 14, 3)
		dc.Fill()

		dc.SetColor(legendItemColor)
		dc.DrawStringAnchored(item.label, x+28, y+7, 0, 0.5)
		y += 28
	}
}

func hourOf(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// darken затемняет цвет на множитель
func darken(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}
