package stoat_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaselworks/go-stoat"
	"github.com/weaselworks/go-stoat/adapters/memory"
)

func TestFanOutModeString(t *testing.T) {
	assert.Equal(t, "before-grouping", stoat.FanOutBeforeGrouping.String())
	assert.Contains(t, stoat.FanOutMode(7).String(), "unknown")
}

// An n-day assignment yields exactly n documents, one per inclusive day.
func TestFanOutDayCountProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("span of n days yields n+1 documents", prop.ForAll(
		func(span int) bool {
			store := newScenarioStore()
			start := day(2026, 1, 5)

			err := store.AppendEvents(context.Background(), "assignment-1", []any{
				workerAssigned{
					AssignmentID: "a1",
					Worker:       "kim",
					Start:        start,
					End:          start.AddDate(0, 0, span),
				},
			})
			if err != nil {
				return false
			}

			docs, err := store.QueryDocuments(context.Background(), "workByDay", nil)
			return err == nil && len(docs) == span+1
		},
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}

func TestInvertedRangeFailsValidationAndRollsBack(t *testing.T) {
	store := newScenarioStore()
	ctx := context.Background()

	err := store.AppendEvents(ctx, "assignment-1", []any{
		workerAssigned{
			AssignmentID: "a1",
			Worker:       "kim",
			Start:        day(2026, 1, 10),
			End:          day(2026, 1, 5),
		},
	})
	require.ErrorIs(t, err, stoat.ErrValidation)

	// Nothing was persisted: no events, no documents.
	events, err := store.LoadEvents(ctx, "assignment-1")
	require.NoError(t, err)
	assert.Empty(t, events)

	docs, err := store.QueryDocuments(ctx, "workByDay", nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSingleDayAssignmentYieldsOneDocument(t *testing.T) {
	store := newScenarioStore()
	ctx := context.Background()
	d := day(2026, 1, 5)

	err := store.AppendEvents(ctx, "assignment-1", []any{
		workerAssigned{AssignmentID: "a1", Worker: "kim", Start: d, End: d},
	})
	require.NoError(t, err)

	docs, err := store.QueryDocuments(ctx, "workByDay", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].(workByDay).Day.Equal(d))
}

// Derived events whose type has no fold bound are dropped from the working
// set rather than failing the append.
func TestUnfoldedDerivedEventsAreDropped(t *testing.T) {
	type auditNote struct {
		Text string
	}

	store := stoat.New(memory.NewAdapter())
	store.RegisterEvents(workerAssigned{})
	store.RegisterDocuments(workByDay{})

	def := stoat.NewMultiStreamProjection("work-by-day", "workByDay").
		FanOut("workerAssigned", stoat.FanOutBeforeGrouping, func(event any) ([]any, error) {
			e := event.(workerAssigned)
			return []any{
				workerAssignedForDay{AssignmentID: e.AssignmentID, Worker: e.Worker, Day: e.Start},
				auditNote{Text: "assigned"},
			}, nil
		}).
		Identity("workerAssignedForDay", func(event any) string {
			e := event.(workerAssignedForDay)
			return dayKey(e.AssignmentID, e.Day)
		}).
		Create("workerAssignedForDay", func(event any) (any, error) {
			e := event.(workerAssignedForDay)
			return workByDay{AssignmentID: e.AssignmentID, Worker: e.Worker, Day: e.Day}, nil
		})
	require.NoError(t, store.RegisterProjection(def))

	d := day(2026, 1, 5)
	err := store.AppendEvents(context.Background(), "assignment-1", []any{
		workerAssigned{AssignmentID: "a1", Worker: "kim", Start: d, End: d},
	})
	require.NoError(t, err)

	docs, err := store.QueryDocuments(context.Background(), "workByDay", nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

// With IncludeSource the raw source event joins its derived events and
// folds under its own identity.
func TestIncludeSourceFoldsRawEvent(t *testing.T) {
	type assignmentSummary struct {
		AssignmentID string
		Days         int
	}

	store := stoat.New(memory.NewAdapter())
	store.RegisterEvents(workerAssigned{})
	store.RegisterDocuments(assignmentSummary{})

	def := stoat.NewMultiStreamProjection("assignment-summary", "assignmentSummary").
		FanOut("workerAssigned", stoat.FanOutBeforeGrouping, expandAssignment).
		IncludeSource("workerAssigned").
		Identity("workerAssigned", func(event any) string {
			return event.(workerAssigned).AssignmentID
		}).
		Identity("workerAssignedForDay", func(event any) string {
			return event.(workerAssignedForDay).AssignmentID
		}).
		Create("workerAssigned", func(event any) (any, error) {
			e := event.(workerAssigned)
			return assignmentSummary{AssignmentID: e.AssignmentID}, nil
		}).
		Apply("workerAssignedForDay", func(doc any, event any) (any, error) {
			d := doc.(assignmentSummary)
			d.Days++
			return d, nil
		})
	require.NoError(t, store.RegisterProjection(def))

	start := day(2026, 1, 5)
	err := store.AppendEvents(context.Background(), "assignment-1", []any{
		workerAssigned{AssignmentID: "a1", Worker: "kim", Start: start, End: start.AddDate(0, 0, 2)},
	})
	require.NoError(t, err)

	doc, err := store.LoadDocument(context.Background(), "assignmentSummary", "a1")
	require.NoError(t, err)

	// The source event ran first (create), then its three derived events.
	summary := doc.(assignmentSummary)
	assert.Equal(t, 3, summary.Days)
}

func TestExpansionCoversMonthBoundaries(t *testing.T) {
	store := newScenarioStore()
	ctx := context.Background()

	err := store.AppendEvents(ctx, "assignment-1", []any{
		workerAssigned{
			AssignmentID: "a1",
			Worker:       "kim",
			Start:        day(2026, 1, 30),
			End:          day(2026, 2, 2),
		},
	})
	require.NoError(t, err)

	docs, err := store.QueryDocuments(ctx, "workByDay", nil)
	require.NoError(t, err)
	require.Len(t, docs, 4)

	var days []string
	for _, doc := range docs {
		days = append(days, doc.(workByDay).Day.Format("2006-01-02"))
	}
	assert.ElementsMatch(t, []string{"2026-01-30", "2026-01-31", "2026-02-01", "2026-02-02"}, days)
}
