// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"strings"

	"github.com/pdiddy/deep-researcher/internal/summarize"
)

// RoundPolicy decides, after a productive round, whether the task should
// run another search round and with what query. Returning false ends the
// task's round loop with the summary recorded so far.
type RoundPolicy func(round, maxRounds int, res summarize.Result) (again bool, nextQuery string)

// DefaultRoundPolicy continues only while the summarizer reported partial
// coverage with a usable follow-up query and the round bound leaves room.
func DefaultRoundPolicy(round, maxRounds int, res summarize.Result) (bool, string) {
	if round >= maxRounds || res.Complete {
		return false, ""
	}
	next := strings.TrimSpace(res.FollowUpQuery)
	if next == "" {
		return false, ""
	}
	return true, next
}
