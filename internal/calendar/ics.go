package calendar

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
)

const (
	icsDateLayout     = "20060102"
	icsDateTimeLayout = "20060102T150405"
)

// ParseICS читает VEVENT из ICS-документа и возвращает их занятые интервалы.
// Учитываются только BEGIN/END:VEVENT, DTSTART и DTEND; параметры перед двоеточием
// (в том числе TZID) игнорируются. Событие без одной из границ или с
// нераспознанной датой пропускается без ошибки.
func ParseICS(r io.Reader) ([]model.BusyInterval, error) {
	var (
		out      []model.BusyInterval
		inEvent  bool
		startRaw string
		endRaw   string
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "BEGIN:VEVENT":
			inEvent = true
			startRaw, endRaw = "", ""

		case line == "END:VEVENT":
			if inEvent && startRaw != "" && endRaw != "" {
				if interval, ok := eventInterval(startRaw, endRaw); ok {
					out = append(out, interval)
				}
			}
			inEvent = false

		case inEvent && strings.HasPrefix(line, "DTSTART"):
			startRaw = valueAfterColon(line)

		case inEvent && strings.HasPrefix(line, "DTEND"):
			endRaw = valueAfterColon(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ics: %w", err)
	}

	return out, nil
}

func eventInterval(startRaw, endRaw string) (model.BusyInterval, bool) {
	start, err := ParseICSDateTime(startRaw)
	if err != nil {
		return model.BusyInterval{}, false
	}
	end, err := ParseICSDateTime(endRaw)
	if err != nil {
		return model.BusyInterval{}, false
	}
	return model.BusyInterval{Start: start, End: end}, true
}

func valueAfterColon(line string) string {
	i := strings.LastIndex(line, ":")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[i+1:])
}

// ParseICSDateTime переводит значение DTSTART/DTEND в момент времени UTC.
//
//	20260301         -> 2026-03-01T00:00:00Z
//	20260301T090000Z -> 2026-03-01T09:00:00Z
//	20260301T090000  -> 2026-03-01T09:00:00Z (суффикс не важен, пояс не применяется)
func ParseICSDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	if len(value) == len(icsDateLayout) && isDigits(value) {
		t, err := time.ParseInLocation(icsDateLayout, value, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse ics date %q: %w", value, err)
		}
		return t, nil
	}

	t, err := time.ParseInLocation(icsDateTimeLayout, strings.TrimSuffix(value, "Z"), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ics date-time %q: %w", value, err)
	}
	return t, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
