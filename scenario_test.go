package stoat_test

import (
	"fmt"
	"time"

	"github.com/weaselworks/go-stoat"
	"github.com/weaselworks/go-stoat/adapters/memory"
)

// Worker assignment scenario shared across tests: an assignment spanning
// days fans out into one derived event per day, and completions fold into
// the matching day's document.

type workerAssigned struct {
	AssignmentID string
	Worker       string
	Start        time.Time
	End          time.Time
}

type workerAssignedForDay struct {
	AssignmentID string
	Worker       string
	Day          time.Time
}

type workCompleted struct {
	AssignmentID string
	Day          time.Time
	Description  string
}

type workByDay struct {
	AssignmentID string
	Worker       string
	Day          time.Time
	Completed    []string
}

func dayKey(assignmentID string, day time.Time) string {
	return assignmentID + ":" + day.Format("20060102")
}

func expandAssignment(event any) ([]any, error) {
	e := event.(workerAssigned)
	if e.End.Before(e.Start) {
		return nil, fmt.Errorf("assignment ends %s before it starts %s",
			e.End.Format("2006-01-02"), e.Start.Format("2006-01-02"))
	}

	var derived []any
	for day := e.Start; !day.After(e.End); day = day.AddDate(0, 0, 1) {
		derived = append(derived, workerAssignedForDay{
			AssignmentID: e.AssignmentID,
			Worker:       e.Worker,
			Day:          day,
		})
	}
	return derived, nil
}

func workByDayProjection() *stoat.Definition {
	return stoat.NewMultiStreamProjection("work-by-day", "workByDay").
		FanOut("workerAssigned", stoat.FanOutBeforeGrouping, expandAssignment).
		Identity("workerAssignedForDay", func(event any) string {
			e := event.(workerAssignedForDay)
			return dayKey(e.AssignmentID, e.Day)
		}).
		Identity("workCompleted", func(event any) string {
			e := event.(workCompleted)
			return dayKey(e.AssignmentID, e.Day)
		}).
		Create("workerAssignedForDay", func(event any) (any, error) {
			e := event.(workerAssignedForDay)
			return workByDay{AssignmentID: e.AssignmentID, Worker: e.Worker, Day: e.Day}, nil
		}).
		Apply("workCompleted", func(doc any, event any) (any, error) {
			d := doc.(workByDay)
			d.Completed = append(d.Completed, event.(workCompleted).Description)
			return d, nil
		})
}

// newScenarioStore builds a memory-backed store with the scenario types and
// the work-by-day projection registered.
func newScenarioStore() *stoat.DocumentStore {
	store := stoat.New(memory.NewAdapter())
	store.RegisterEvents(workerAssigned{}, workCompleted{})
	store.RegisterDocuments(workByDay{})
	if err := store.RegisterProjection(workByDayProjection()); err != nil {
		panic(err)
	}
	return store
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
