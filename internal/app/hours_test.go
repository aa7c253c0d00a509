package app_test

import (
	"testing"

	"venue_atlas/internal/app"
	"venue_atlas/internal/domain"
)

func TestParseHours_StringLines(t *testing.T) {
	got := app.ParseHours([]any{
		"Monday: 9:00 AM – 10:00 PM",
		"Tuesday: closed",
		"Wednesday: 09:00-22:00",
	})
	want := []domain.WorkingHours{
		{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "22:00"},
		{DayOfWeek: 2, OpenTime: "00:00", CloseTime: "00:00", IsClosed: true},
		{DayOfWeek: 3, OpenTime: "09:00", CloseTime: "22:00"},
	}
	if len(got) != len(want) {
		t.Fatalf("rows: got %d want %d (%+v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestParseHours_RussianDaysAndClosedWords(t *testing.T) {
	got := app.ParseHours([]any{
		"Понедельник: 09:00 - 18:00",
		"Вторник: выходной",
		"ср: 10:00 до 23:00",
	})
	if len(got) != 3 {
		t.Fatalf("rows: %+v", got)
	}
	if got[0].DayOfWeek != 1 || got[0].OpenTime != "09:00" || got[0].CloseTime != "18:00" {
		t.Fatalf("monday row: %+v", got[0])
	}
	if got[1].DayOfWeek != 2 || !got[1].IsClosed {
		t.Fatalf("tuesday row: %+v", got[1])
	}
	if got[2].DayOfWeek != 3 || got[2].CloseTime != "23:00" {
		t.Fatalf("wednesday row: %+v", got[2])
	}
}

func TestParseHours_RoundTheClock(t *testing.T) {
	got := app.ParseHours([]any{"Friday: 24/7", "Суббота: круглосуточно"})
	if len(got) != 2 {
		t.Fatalf("rows: %+v", got)
	}
	for _, wh := range got {
		if wh.OpenTime != "00:00" || wh.CloseTime != "23:59" || wh.IsClosed {
			t.Fatalf("round-the-clock row: %+v", wh)
		}
	}
}

func TestParseHours_MapShape(t *testing.T) {
	got := app.ParseHours(map[string]any{
		"saturday": "10:00 - 22:00",
		"воскр":    "ignored, unknown day key",
	})
	if len(got) != 1 || got[0].DayOfWeek != 6 || got[0].OpenTime != "10:00" {
		t.Fatalf("rows: %+v", got)
	}
}

func TestParseHours_ObjectShapes(t *testing.T) {
	got := app.ParseHours([]any{
		map[string]any{"day": "mon", "hours": "9:00 AM - 5:30 PM"},
		map[string]any{"dayOfWeek": float64(2), "openTime": "11:00", "closeTime": "23:00"},
		map[string]any{"day": "wednesday", "isClosed": true},
	})
	if len(got) != 3 {
		t.Fatalf("rows: %+v", got)
	}
	if got[0].DayOfWeek != 1 || got[0].OpenTime != "09:00" || got[0].CloseTime != "17:30" {
		t.Fatalf("object row: %+v", got[0])
	}
	if got[1].DayOfWeek != 2 || got[1].OpenTime != "11:00" {
		t.Fatalf("object row: %+v", got[1])
	}
	if !got[2].IsClosed {
		t.Fatalf("object row: %+v", got[2])
	}
}

func TestParseHours_DropsGarbage(t *testing.T) {
	got := app.ParseHours([]any{
		"Blursday: 9:00 - 18:00", // unknown day
		"Monday: sometime",       // unparseable range
		"Tuesday: 99:00 - 18:00", // invalid hour
		42,                       // wrong type entirely
	})
	if len(got) != 0 {
		t.Fatalf("expected no rows, got %+v", got)
	}
}

func TestParseHours_FirstRowPerDayWins(t *testing.T) {
	got := app.ParseHours([]any{
		"Monday: 09:00 - 18:00",
		"Monday: 10:00 - 20:00",
	})
	if len(got) != 1 || got[0].OpenTime != "09:00" {
		t.Fatalf("rows: %+v", got)
	}
}
