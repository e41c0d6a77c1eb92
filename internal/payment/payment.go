package payment

import (
	"strings"

	"github.com/google/uuid"
)

// Payment categories as the organization collects them.
const (
	CategoryOffering     = "OFFERING"
	CategoryTithe        = "TITHE"
	CategoryContribution = "CONTRIBUTION"
	CategoryMission      = "MISSION"
	CategoryLunch        = "LUNCH"
	CategoryFundraising  = "FUNDRAISING"
)

// Mission sub-categories, valid only when the category is MISSION.
const (
	MissionTwentyBob      = "20_BOB"
	MissionFiftyBob       = "50_BOB"
	MissionCohort         = "COHORT"
	MissionFamily         = "FAMILY"
	MissionMiniFundraiser = "MINI_FUNDRAISER"
	MissionMusicConcert   = "MUSIC_CONCERT"
	MissionMegaFundraiser = "MEGA_FUNDRAISER"
)

var Categories = []string{
	CategoryOffering,
	CategoryTithe,
	CategoryContribution,
	CategoryMission,
	CategoryLunch,
	CategoryFundraising,
}

var MissionSubtypes = []string{
	MissionTwentyBob,
	MissionFiftyBob,
	MissionCohort,
	MissionFamily,
	MissionMiniFundraiser,
	MissionMusicConcert,
	MissionMegaFundraiser,
}

func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

func IsValidMissionSubtype(subtype string) bool {
	for _, s := range MissionSubtypes {
		if s == subtype {
			return true
		}
	}
	return false
}

// AccountRefMaxLen is the gateway's hard limit on AccountReference.
const AccountRefMaxLen = 12

// BuildAccountReference derives the merchant account reference sent with a
// push: "{prefix}_{category}", with the mission subtype appended when set.
// Truncation to the gateway limit happens after concatenation, so two long
// subtypes can collide on the same truncated reference. Known limitation;
// the transaction reference, not the account reference, is what correlates
// a callback.
func BuildAccountReference(prefix, category string, missionSubtype *string) string {
	ref := prefix + "_" + category
	if category == CategoryMission && missionSubtype != nil && *missionSubtype != "" {
		ref = ref + "_" + *missionSubtype
	}
	if len(ref) > AccountRefMaxLen {
		ref = ref[:AccountRefMaxLen]
	}
	return ref
}

// NewTransactionRef generates the idempotency key correlating an initiation
// to its eventual callback. Unique across all payments.
func NewTransactionRef() string {
	return "PMT-" + strings.ToUpper(uuid.New().String())
}
