// Package linking binds application accounts to Telegram identities through
// single-use link tokens, and guards every write of accounts.telegram_id.
package linking

import (
	"time"

	"github.com/poll-miniapp/backend/internal/models"
)

// Outcome is the result of a link attempt. Values double as webhook status tokens.
type Outcome string

const (
	OutcomeLinked            Outcome = "linked"
	OutcomeInvalidToken      Outcome = "invalid_token"
	OutcomeExpiredToken      Outcome = "expired_token"
	OutcomeUserAlreadyLinked Outcome = "user_already_linked"
	OutcomeTelegramIDInUse   Outcome = "telegram_id_in_use"
)

// Attempt is everything Decide looks at. Token is nil when the token string is unknown;
// Holder is the account currently owning Candidate, nil when nobody does.
type Attempt struct {
	Token     *models.LinkToken
	Owner     *models.Account
	Holder    *models.Account
	Candidate int64
	Now       time.Time
}

// Decide resolves a /start <token> attempt. Only OutcomeLinked permits a write.
func Decide(a Attempt) Outcome {
	if a.Token == nil || a.Owner == nil {
		return OutcomeInvalidToken
	}
	if !a.Token.Valid(a.Now) {
		return OutcomeExpiredToken
	}
	return CheckAssignment(a.Owner, a.Candidate, a.Holder)
}

// CheckAssignment applies the two identity checks shared by the token flow and the
// admin path: the owner must not hold a different Telegram ID, and no other account
// may hold the candidate.
func CheckAssignment(owner *models.Account, candidate int64, holder *models.Account) Outcome {
	if owner.TelegramID != nil && *owner.TelegramID != candidate {
		return OutcomeUserAlreadyLinked
	}
	if holder != nil && holder.ID != owner.ID {
		return OutcomeTelegramIDInUse
	}
	return OutcomeLinked
}
