package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
)

// Wednesday, 2026-09-02.
var wednesday = time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC)

func assistantTurn(content string) history.Turn {
	return history.Turn{Role: history.RoleAssistant, Content: content}
}

func userTurn(content string) history.Turn {
	return history.Turn{Role: history.RoleUser, Content: content}
}

func TestExtractDate(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		expected string
	}{
		{"tomorrow", "book a table tomorrow", "2026-09-03"},
		{"tonight", "anything available tonight?", "2026-09-02"},
		{"today", "for today please", "2026-09-02"},
		{"this weekend", "things to do this weekend", "2026-09-05"},
		{"next weekend", "how about next weekend", "2026-09-12"},
		{"named weekday ahead", "friday works", "2026-09-04"},
		{"this friday", "this friday at 8", "2026-09-04"},
		{"same weekday means today", "this wednesday", "2026-09-02"},
		{"next monday", "next monday instead", "2026-09-14"},
		{"no date", "find me sushi", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractDate(tc.query, wednesday))
		})
	}
}

func TestExtractTime(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		expected string
	}{
		{"pm hour", "dinner at 9pm", "21:00"},
		{"pm with minutes", "7:30 pm works", "19:30"},
		{"am hour", "brunch at 10am", "10:00"},
		{"noon", "12pm sharp", "12:00"},
		{"midnight", "12am flight", "0:00"},
		{"no time", "book a table", ""},
		{"bare digits are not a time", "table for 9", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractTime(tc.query))
		})
	}
}

func TestExtractPartySize(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		expected string
	}{
		{"n people", "table for 4 people", "4"},
		{"party of", "party of 6 tonight", "6"},
		{"group of", "a group of 12", "12"},
		{"for n", "book for 2 at Yardbird", "2"},
		{"for n followed by clock time is not a party", "book for 2 pm", ""},
		{"no party", "what's available", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractPartySize(tc.query))
		})
	}
}

func TestResolveFullScenario(t *testing.T) {
	turns := []history.Turn{
		userTurn("any good chicken places in hong kong?"),
		assistantTurn("You could try **Yardbird** in Sheung Wan or **La Vache** in Central."),
	}

	ctx := ResolveAt(wednesday, "book Yardbird for 2 people at 9pm tomorrow", turns)

	assert.Equal(t, "Yardbird", ctx.NamedEntity)
	assert.Equal(t, "2", ctx.PartySize)
	assert.Equal(t, "21:00", ctx.Time)
	assert.Equal(t, "2026-09-03", ctx.Date)
	assert.Empty(t, ctx.ReferencedItem, "no ordinal language present")
}

func TestResolveOrdinalReference(t *testing.T) {
	turns := []history.Turn{
		assistantTurn("Here are some options:\n1. **A**\n2. **B**\n3. **C**"),
	}

	assert.Equal(t, "B", ResolveAt(wednesday, "book the second one", turns).ReferencedItem)
	assert.Equal(t, "C", ResolveAt(wednesday, "the last one please", turns).ReferencedItem)
	assert.Equal(t, "A", ResolveAt(wednesday, "1st", turns).ReferencedItem)
	assert.Equal(t, "C", ResolveAt(wednesday, "3", turns).ReferencedItem)
}

func TestResolveReferenceSkipsEntityMatching(t *testing.T) {
	turns := []history.Turn{
		assistantTurn("Options: **First Street Cafe** and **Second Home**"),
	}

	// "second" classifies the query as a reference, so entity matching
	// must not run even though a name would match.
	ctx := ResolveAt(wednesday, "the second one", turns)
	assert.Equal(t, "Second Home", ctx.ReferencedItem)
	assert.Empty(t, ctx.NamedEntity)
}

func TestResolveReferenceWithoutList(t *testing.T) {
	turns := []history.Turn{
		assistantTurn("I can help with restaurants, hotels, and events."),
	}

	ctx := ResolveAt(wednesday, "book the second one", turns)
	assert.Empty(t, ctx.ReferencedItem, "the resolver does not guess")
}

func TestResolveReferenceOutOfRange(t *testing.T) {
	turns := []history.Turn{
		assistantTurn("1. **A**\n2. **B**"),
	}

	ctx := ResolveAt(wednesday, "the fifth one", turns)
	assert.Empty(t, ctx.ReferencedItem)
}

func TestResolveUsesMostRecentList(t *testing.T) {
	turns := []history.Turn{
		assistantTurn("1. **Old A**\n2. **Old B**"),
		userTurn("anything newer?"),
		assistantTurn("1. **New A**\n2. **New B**"),
	}

	ctx := ResolveAt(wednesday, "the first one", turns)
	assert.Equal(t, "New A", ctx.ReferencedItem)
}

func TestResolveSameTimeSameParty(t *testing.T) {
	turns := []history.Turn{
		userTurn("book a table for 4 people at 7:30pm on friday"),
		assistantTurn("Done! Your table for 4 at **Mott 32** is confirmed."),
		userTurn("actually cancel that"),
	}

	ctx := ResolveAt(wednesday, "try saturday instead, same time same party", turns)
	assert.Equal(t, "19:30", ctx.Time)
	assert.Equal(t, "4", ctx.PartySize)
	assert.Equal(t, "2026-09-05", ctx.Date)
}

func TestResolveSameWithEmptyHistory(t *testing.T) {
	ctx := ResolveAt(wednesday, "same time, same party", nil)
	assert.Empty(t, ctx.Time, "no fabricated defaults")
	assert.Empty(t, ctx.PartySize)
}

func TestResolveSameScanStopsAtFirstMatch(t *testing.T) {
	turns := []history.Turn{
		userTurn("for 8 people at 6pm"),
		userTurn("make it 2 people at 9pm"),
	}

	// Reverse scan: most recent user turn wins.
	ctx := ResolveAt(wednesday, "same again tomorrow", turns)
	assert.Equal(t, "21:00", ctx.Time)
	assert.Equal(t, "2", ctx.PartySize)
}

func TestResolveNamedEntityCaseInsensitive(t *testing.T) {
	turns := []history.Turn{
		assistantTurn("I'd suggest **Mott 32** for Cantonese."),
	}

	ctx := ResolveAt(wednesday, "is mott 32 available tonight?", turns)
	assert.Equal(t, "Mott 32", ctx.NamedEntity)
}

func TestResolveNoHistoryNoEntity(t *testing.T) {
	ctx := ResolveAt(wednesday, "book Yardbird tonight", nil)
	assert.Empty(t, ctx.NamedEntity)
}

func TestSingleStarEmphasis(t *testing.T) {
	turns := []history.Turn{
		assistantTurn("Top picks:\n- *Ho Lee Fook*\n- *Chom Chom*"),
	}

	ctx := ResolveAt(wednesday, "the first one", turns)
	assert.Equal(t, "Ho Lee Fook", ctx.ReferencedItem)
}
