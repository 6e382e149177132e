// Package campaign owns the authoritative state of one campaign and the pure
// state transitions applied to it during an active session.
package campaign

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"

	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
	"github.com/loreforge/loreforge/internal/platform/id"
)

// Mode describes whether a campaign is exploring or fighting.
type Mode int

const (
	// ModeExploration is the default free-play mode.
	ModeExploration Mode = iota
	// ModeCombat is the initiative-ordered combat mode.
	ModeCombat
)

func (m Mode) String() string {
	switch m {
	case ModeExploration:
		return "exploration"
	case ModeCombat:
		return "combat"
	default:
		return "unknown"
	}
}

// Advancement selects how characters level up.
type Advancement string

const (
	// AdvancementMilestone levels the party at story milestones.
	AdvancementMilestone Advancement = "milestone"
	// AdvancementXP levels characters by experience points.
	AdvancementXP Advancement = "xp"
)

// RollVisibility controls who sees roll details.
type RollVisibility string

const (
	// RollsPublic shows every roll to the whole table.
	RollsPublic RollVisibility = "public"
	// RollsHidden keeps roll details private to the owner and narrator.
	RollsHidden RollVisibility = "hidden"
)

var (
	// ErrEmptyTitle indicates a missing campaign title.
	ErrEmptyTitle = errors.New("campaign title is required")
	// ErrEmptyOwner indicates a missing campaign owner.
	ErrEmptyOwner = errors.New("campaign owner id is required")
)

// Settings is the rule configuration chosen at campaign creation.
type Settings struct {
	StartingLevel  int            `json:"starting_level"`
	Advancement    Advancement    `json:"advancement"`
	RollVisibility RollVisibility `json:"roll_visibility"`
	MaxPartySize   int            `json:"max_party_size"`
	// Locale is a BCP 47 tag hinting the narration language.
	Locale string `json:"locale"`
}

// Campaign is the root aggregate for one adventure.
type Campaign struct {
	ID          string
	Title       string
	Description string
	OwnerID     string
	// JoinCodeHash is the bcrypt hash of the join code; the plaintext is
	// shown once at creation and never stored.
	JoinCodeHash string
	Settings     Settings

	Mode Mode
	// CurrentPlayerID is the exploration-mode turn holder.
	CurrentPlayerID string
	// CurrentUnitID is the combat-mode initiative cursor.
	CurrentUnitID string
	// InitiativeOrder is the combat turn sequence, best first.
	InitiativeOrder []string
	// Round counts combat rounds, starting at 1.
	Round int
	// TurnSeq is the monotonically advancing turn token.
	TurnSeq uint64
	// EventSeq is the last event sequence number assigned.
	EventSeq uint64

	PlayerIDs []string
	Quests    []Quest
	NPCs      []NPC
	Map       MapState
	Clock     WorldClock

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput captures the metadata needed to create a campaign.
type CreateInput struct {
	Title       string
	Description string
	OwnerID     string
	Settings    Settings
}

// CreateResult carries the new campaign and its one-time join code.
type CreateResult struct {
	Campaign Campaign
	// JoinCode is the plaintext join code; it is not recoverable later.
	JoinCode string
}

// Create builds a new campaign with a generated id and a hashed join code.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (CreateResult, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return CreateResult{}, ErrEmptyTitle
	}
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.OwnerID == "" {
		return CreateResult{}, ErrEmptyOwner
	}

	settings, err := normalizeSettings(input.Settings)
	if err != nil {
		return CreateResult{}, err
	}

	campaignID, err := idGenerator()
	if err != nil {
		return CreateResult{}, fmt.Errorf("generate campaign id: %w", err)
	}
	joinCode, err := idGenerator()
	if err != nil {
		return CreateResult{}, fmt.Errorf("generate join code: %w", err)
	}
	joinCode = joinCode[:8]
	hash, err := bcrypt.GenerateFromPassword([]byte(joinCode), bcrypt.DefaultCost)
	if err != nil {
		return CreateResult{}, fmt.Errorf("hash join code: %w", err)
	}

	createdAt := now().UTC()
	return CreateResult{
		Campaign: Campaign{
			ID:           campaignID,
			Title:        input.Title,
			Description:  strings.TrimSpace(input.Description),
			OwnerID:      input.OwnerID,
			JoinCodeHash: string(hash),
			Settings:     settings,
			Mode:         ModeExploration,
			Round:        0,
			Clock:        NewWorldClock(),
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		},
		JoinCode: joinCode,
	}, nil
}

func normalizeSettings(settings Settings) (Settings, error) {
	if settings.StartingLevel <= 0 {
		settings.StartingLevel = 1
	}
	if settings.Advancement == "" {
		settings.Advancement = AdvancementMilestone
	}
	if settings.RollVisibility == "" {
		settings.RollVisibility = RollsPublic
	}
	if settings.MaxPartySize <= 0 {
		settings.MaxPartySize = 5
	}
	settings.Locale = strings.TrimSpace(settings.Locale)
	if settings.Locale == "" {
		settings.Locale = "en"
	}
	tag, err := language.Parse(settings.Locale)
	if err != nil {
		return Settings{}, apperrors.Wrap(apperrors.CodeCampaignInvalidLocale, "campaign locale is not a valid BCP 47 tag", err)
	}
	settings.Locale = tag.String()
	return settings, nil
}

// VerifyJoinCode checks a candidate join code against the stored hash.
func (c Campaign) VerifyJoinCode(code string) error {
	err := bcrypt.CompareHashAndPassword([]byte(c.JoinCodeHash), []byte(strings.TrimSpace(code)))
	if err != nil {
		return apperrors.New(apperrors.CodeCampaignJoinCodeInvalid, "join code does not match")
	}
	return nil
}

// AddPlayer registers a player id on the campaign roster.
func (c Campaign) AddPlayer(playerID string) (Campaign, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return c, errors.New("player id is required")
	}
	for _, existing := range c.PlayerIDs {
		if existing == playerID {
			return c, nil
		}
	}
	if len(c.PlayerIDs) >= c.Settings.MaxPartySize {
		return c, apperrors.New(apperrors.CodeCampaignPartyFull, "party is at maximum size")
	}
	c.PlayerIDs = append(append([]string(nil), c.PlayerIDs...), playerID)
	if c.CurrentPlayerID == "" {
		c.CurrentPlayerID = playerID
	}
	return c, nil
}
