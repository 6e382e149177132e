package campaign

import (
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
}

func testIDGenerator() func() (string, error) {
	counter := 0
	return func() (string, error) {
		counter++
		return fmt.Sprintf("testid%020d", counter), nil
	}
}

func TestCreate(t *testing.T) {
	result, err := Create(CreateInput{
		Title:   "  The Sunken Vale  ",
		OwnerID: "owner-1",
	}, fixedNow, testIDGenerator())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	c := result.Campaign
	if c.Title != "The Sunken Vale" {
		t.Errorf("Title = %q, want trimmed title", c.Title)
	}
	if c.Mode != ModeExploration {
		t.Errorf("Mode = %v, want exploration", c.Mode)
	}
	if c.Settings.StartingLevel != 1 {
		t.Errorf("StartingLevel = %d, want default 1", c.Settings.StartingLevel)
	}
	if c.Settings.MaxPartySize != 5 {
		t.Errorf("MaxPartySize = %d, want default 5", c.Settings.MaxPartySize)
	}
	if c.Settings.Locale != "en" {
		t.Errorf("Locale = %q, want default en", c.Settings.Locale)
	}
	if result.JoinCode == "" {
		t.Fatal("JoinCode is empty")
	}
	if err := c.VerifyJoinCode(result.JoinCode); err != nil {
		t.Errorf("VerifyJoinCode(valid) error = %v", err)
	}
	if err := c.VerifyJoinCode("wrong"); apperrors.CodeOf(err) != apperrors.CodeCampaignJoinCodeInvalid {
		t.Errorf("VerifyJoinCode(wrong) code = %v, want join code invalid", apperrors.CodeOf(err))
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateInput
		wantErr error
	}{
		{
			name:    "empty title",
			input:   CreateInput{OwnerID: "owner-1"},
			wantErr: ErrEmptyTitle,
		},
		{
			name:    "empty owner",
			input:   CreateInput{Title: "Vale"},
			wantErr: ErrEmptyOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(tt.input, fixedNow, testIDGenerator())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateInvalidLocale(t *testing.T) {
	_, err := Create(CreateInput{
		Title:    "Vale",
		OwnerID:  "owner-1",
		Settings: Settings{Locale: "not a locale!!"},
	}, fixedNow, testIDGenerator())
	if apperrors.CodeOf(err) != apperrors.CodeCampaignInvalidLocale {
		t.Errorf("Create() code = %v, want invalid locale", apperrors.CodeOf(err))
	}
}

func TestCreateNormalizesLocale(t *testing.T) {
	result, err := Create(CreateInput{
		Title:    "Vale",
		OwnerID:  "owner-1",
		Settings: Settings{Locale: "PT-br"},
	}, fixedNow, testIDGenerator())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.Campaign.Settings.Locale != "pt-BR" {
		t.Errorf("Locale = %q, want pt-BR", result.Campaign.Settings.Locale)
	}
}

func TestAddPlayer(t *testing.T) {
	c := Campaign{Settings: Settings{MaxPartySize: 2}}

	c, err := c.AddPlayer("alice")
	if err != nil {
		t.Fatalf("AddPlayer(alice) error = %v", err)
	}
	if c.CurrentPlayerID != "alice" {
		t.Errorf("CurrentPlayerID = %q, want first player", c.CurrentPlayerID)
	}

	// Re-adding is idempotent.
	c, err = c.AddPlayer("alice")
	if err != nil {
		t.Fatalf("AddPlayer(alice) again error = %v", err)
	}
	if len(c.PlayerIDs) != 1 {
		t.Fatalf("PlayerIDs = %v, want one entry", c.PlayerIDs)
	}

	c, err = c.AddPlayer("bob")
	if err != nil {
		t.Fatalf("AddPlayer(bob) error = %v", err)
	}
	_, err = c.AddPlayer("carol")
	if apperrors.CodeOf(err) != apperrors.CodeCampaignPartyFull {
		t.Errorf("AddPlayer(carol) code = %v, want party full", apperrors.CodeOf(err))
	}
}

func TestWorldClockTick(t *testing.T) {
	clock := NewWorldClock()
	crossed := false
	for i := 0; i < actionsPerSegment; i++ {
		if crossed {
			t.Fatal("clock crossed before enough actions")
		}
		clock, crossed = clock.Tick()
	}
	if !crossed {
		t.Fatal("clock did not cross after a full segment of actions")
	}
	if clock.Segment != "morning" {
		t.Errorf("Segment = %q, want morning", clock.Segment)
	}
	if clock.Day != 1 {
		t.Errorf("Day = %d, want 1", clock.Day)
	}
}

func TestWorldClockWrapsToNextDay(t *testing.T) {
	clock := WorldClock{Day: 3, Segment: "night"}
	for i := 0; i < actionsPerSegment; i++ {
		clock, _ = clock.Tick()
	}
	if clock.Segment != "dawn" || clock.Day != 4 {
		t.Errorf("clock = day %d %s, want day 4 dawn", clock.Day, clock.Segment)
	}
}

func TestWorldClockWeatherRoll(t *testing.T) {
	tests := []struct {
		roll int
		want Weather
	}{
		{1, "clear"},
		{10, "clear"},
		{11, "overcast"},
		{16, "rain"},
		{18, "fog"},
		{20, "storm"},
	}
	for _, tt := range tests {
		clock := NewWorldClock().SetWeatherRoll(tt.roll)
		if clock.Weather != tt.want {
			t.Errorf("SetWeatherRoll(%d) = %q, want %q", tt.roll, clock.Weather, tt.want)
		}
	}
}
