package protocol

import (
	"context"
	"sort"

	"github.com/dalemusser/ninjaprotocol/internal/app/system/htmlsanitize"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/normalize"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/status"
	"go.uber.org/zap"
)

// Submission is the posted admin form for one request.
type Submission struct {
	Actor Actor

	// HasToken is true when the anti-forgery field was present at all.
	// Requests without it are page views, not submissions.
	HasToken bool
	Token    string

	// Statuses maps raw user identifiers to raw status values as posted.
	// nil means the mapping was absent.
	Statuses map[string]string
}

// HandleSubmission applies a posted status form and returns the notice to
// show, or nil when the request produced no notice.
//
// Gates run in order and the first failing gate ends processing:
// not a submission or not authorized (nil), bad token (error notice),
// missing or empty mapping (nil). Past the gates, invalid entries are
// skipped and exactly one success or info notice is returned.
func (s *Service) HandleSubmission(ctx context.Context, sub Submission) *Notice {
	if !sub.HasToken || !authorized(sub.Actor) {
		return nil
	}

	if !s.tokens.Verify(sub.Token, Action, sub.Actor.Subject()) {
		s.logger.Warn("ninja status submission failed token verification")
		return verifyFailedNotice()
	}

	if len(sub.Statuses) == 0 {
		return nil
	}

	keys := make([]string, 0, len(sub.Statuses))
	for k := range sub.Statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updated := 0
	for _, k := range keys {
		userID := normalize.AbsInt(k)
		value := htmlsanitize.PlainText(sub.Statuses[k])

		if !status.IsValid(value) {
			continue
		}
		// No user has ID 0; the store is never asked to write it.
		if userID == 0 {
			continue
		}

		changed, err := s.meta.Set(ctx, userID, status.MetaKey, value)
		if err != nil {
			s.logger.Warn("failed to save ninja status",
				zap.Int64("user_id", userID),
				zap.String("status", value),
				zap.Error(err))
			continue
		}
		if changed {
			updated++
		}
	}

	return outcomeNotice(updated)
}
