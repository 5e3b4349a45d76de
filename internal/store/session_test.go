package store

import (
	"testing"
	"time"
)

func TestSessionRepository(t *testing.T) {
	s := newTestStore(t)
	createExercise(t, s, "ex-1")
	repo := s.Sessions()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	records := []*SessionRecord{
		{ID: "s-1", ExerciseID: "ex-1", Mode: "config", Reps: 8, TargetReps: 10, Frames: 600, Dropped: 3,
			StartedAt: base, EndedAt: base.Add(time.Minute)},
		{ID: "s-2", ExerciseID: "ex-1", Mode: "template", Reps: 10, TargetReps: 10, Completed: true, Frames: 540,
			StartedAt: base.Add(time.Hour), EndedAt: base.Add(time.Hour + time.Minute)},
	}
	for _, rec := range records {
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
	}

	list, err := repo.ListByExercise("ex-1")
	if err != nil {
		t.Fatalf("ListByExercise: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].ID != "s-2" || !list[0].Completed || list[0].Mode != "template" {
		t.Errorf("most recent session first, got %+v", list[0])
	}
	if list[1].Dropped != 3 || list[1].Completed {
		t.Errorf("unexpected record: %+v", list[1])
	}

	total, err := repo.TotalReps("ex-1")
	if err != nil || total != 18 {
		t.Errorf("TotalReps = %d, %v; want 18", total, err)
	}

	empty, err := repo.ListByExercise("other")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no sessions, got %v, %v", empty, err)
	}
	total, _ = repo.TotalReps("other")
	if total != 0 {
		t.Errorf("TotalReps for unknown exercise = %d", total)
	}
}

func TestSessionRepository_RequiresExercise(t *testing.T) {
	repo := newTestStore(t).Sessions()
	err := repo.Create(&SessionRecord{ID: "s-1", ExerciseID: "missing", Mode: "config", StartedAt: time.Now(), EndedAt: time.Now()})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}
