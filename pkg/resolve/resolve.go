// Package resolve derives structured task parameters from a free-text
// request plus recent conversation history. All extraction is pure and
// best-effort: fields that cannot be resolved stay empty, and prompt
// construction renders them as "not specified" rather than guessing.
package resolve

import (
	"time"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
)

// TaskContext carries the slots resolved for a single dispatch. Empty
// string means unset. Never persisted beyond the dispatch.
type TaskContext struct {
	// Date is an ISO calendar date resolved from a relative phrase.
	Date string

	// Time is a 24-hour H:MM clock time.
	Time string

	// PartySize is the head count as the user wrote it.
	PartySize string

	// ReferencedItem is the list item an ordinal reference points at
	// ("the second one" against the last enumerated assistant list).
	ReferencedItem string

	// NamedEntity is a previously mentioned place name that appears
	// verbatim in the query.
	NamedEntity string
}

// Resolve derives a TaskContext from the query and history, using the
// current date for relative phrases.
func Resolve(query string, turns []history.Turn) TaskContext {
	return ResolveAt(time.Now(), query, turns)
}

// ResolveAt is Resolve with an explicit reference time. Deterministic
// given the same inputs.
func ResolveAt(now time.Time, query string, turns []history.Turn) TaskContext {
	ctx := TaskContext{
		Date:      extractDate(query, now),
		Time:      extractTime(query),
		PartySize: extractPartySize(query),
	}

	// "same time, same party": re-apply the extraction patterns to the
	// user's recent turns, most recent first, until both slots fill or
	// the scan is exhausted. First match during the reverse scan wins.
	if wantsSameAsBefore(query) && (ctx.Time == "" || ctx.PartySize == "") {
		for i := len(turns) - 1; i >= 0; i-- {
			if turns[i].Role != history.RoleUser {
				continue
			}
			if ctx.Time == "" {
				ctx.Time = extractTime(turns[i].Content)
			}
			if ctx.PartySize == "" {
				ctx.PartySize = extractPartySize(turns[i].Content)
			}
			if ctx.Time != "" && ctx.PartySize != "" {
				break
			}
		}
	}

	// Reference resolution and named-entity matching are mutually
	// exclusive: a reference request never also name-matches.
	if isReferenceQuery(query) {
		if items := lastEnumeratedList(turns); len(items) > 0 {
			if idx, ok := referenceIndex(query, len(items)); ok {
				ctx.ReferencedItem = items[idx]
			}
		}
	} else {
		ctx.NamedEntity = matchNamedEntity(query, turns)
	}

	return ctx
}
