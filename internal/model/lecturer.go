package model

import (
	"time"
)

// Weekdays порядок дней недели в шаблоне, индекс совпадает с time.Weekday
var Weekdays = []string{
	"Sunday",
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
}

// WeeklyTemplate день недели ("Monday") -> упорядоченный список времени начала "HH:MM"
type WeeklyTemplate map[string][]string

// TimesFor возвращает время занятий для дня недели
func (t WeeklyTemplate) TimesFor(day time.Weekday) []string {
	if t == nil {
		return nil
	}
	return t[Weekdays[day]]
}

// IsEmpty проверяет что в шаблоне нет ни одного времени
func (t WeeklyTemplate) IsEmpty() bool {
	for _, times := range t {
		if len(times) > 0 {
			return false
		}
	}
	return true
}

// ParseWeekday переводит английское название дня недели в time.Weekday
func ParseWeekday(name string) (time.Weekday, bool) {
	for i, d := range Weekdays {
		if d == name {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// OAuthToken сохранённые учётные данные Google Calendar.
// Обновление токена не наша забота: токен либо есть, либо нет.
type OAuthToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

type Lecturer struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Subject        string         `json:"subject"`
	Price          int            `json:"price"` // в центах
	Timezone       string         `json:"timezone"`
	WeeklyTemplate WeeklyTemplate `json:"weekly_template"`
	CalendarICSURL string         `json:"calendar_ics_url,omitempty"`
	GoogleToken    *OAuthToken    `json:"-"`
	TelegramChatID *int64         `json:"telegram_chat_id,omitempty"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// HasGoogleCalendar проверяет привязан ли Google Calendar
func (l *Lecturer) HasGoogleCalendar() bool {
	return l.GoogleToken != nil && l.GoogleToken.AccessToken != ""
}

// Location возвращает часовой пояс преподавателя, при ошибке fallback
func (l *Lecturer) Location(fallback *time.Location) *time.Location {
	if l.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
