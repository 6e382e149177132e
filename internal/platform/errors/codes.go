package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Rule rejections. These signal caller errors that leave state untouched.
	CodeNotYourTurn          Code = "NOT_YOUR_TURN"
	CodeActionAlreadyUsed    Code = "ACTION_ALREADY_USED"
	CodeInvalidTarget        Code = "INVALID_TARGET"
	CodeAlreadyThinking      Code = "ALREADY_THINKING"
	CodeUnitIncapacitated    Code = "UNIT_INCAPACITATED"
	CodeSessionAlreadyActive Code = "SESSION_ALREADY_ACTIVE"

	// Campaign errors
	CodeCampaignNameEmpty       Code = "CAMPAIGN_NAME_EMPTY"
	CodeCampaignInvalidLocale   Code = "CAMPAIGN_INVALID_LOCALE"
	CodeCampaignInvalidSettings Code = "CAMPAIGN_INVALID_SETTINGS"
	CodeCampaignJoinCodeInvalid Code = "CAMPAIGN_JOIN_CODE_INVALID"
	CodeCampaignPartyFull       Code = "CAMPAIGN_PARTY_FULL"
	CodeCampaignNotInCombat     Code = "CAMPAIGN_NOT_IN_COMBAT"
	CodeCampaignAlreadyInCombat Code = "CAMPAIGN_ALREADY_IN_COMBAT"

	// Character errors
	CodeCharacterEmptyName Code = "CHARACTER_EMPTY_NAME"
	CodeCharacterInvalidHP Code = "CHARACTER_INVALID_HP"

	// Session errors
	CodeSessionExited      Code = "SESSION_EXITED"
	CodeSessionNotLoaded   Code = "SESSION_NOT_LOADED"
	CodeNarrationFailed    Code = "NARRATION_FAILED"
	CodeNarrationCancelled Code = "NARRATION_CANCELLED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"

	// Dice/mechanics errors
	CodeDiceInvalidSides Code = "DICE_INVALID_SIDES"
	CodeDiceInvalidSpec  Code = "DICE_INVALID_SPEC"
)
