package session

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
)

func newTestApplier() *Applier {
	a := NewApplier(nil)
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	n := 0
	a.newID = func() string {
		n++
		return fmt.Sprintf("act-%d", n)
	}
	return a
}

func TestApply_IdempotentDelete(t *testing.T) {
	a := newTestApplier()
	snap := NewSnapshot("goals")

	summary := a.Apply([]domain.Operation{{ID: "g1", Delete: true}}, snap)

	if len(summary.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(summary.Results))
	}
	r := summary.Results[0]
	if r.ID != "g1" || r.Status != domain.OperationSuccess || r.Action != domain.ActionDelete {
		t.Errorf("unexpected result %+v", r)
	}
	if snap.Dirty() {
		t.Error("deleting an absent entity must not set the dirty flag")
	}
	if snap.Len() != 0 || len(snap.Activity()) != 0 {
		t.Error("snapshot should be unchanged")
	}
	if summary.HasErrors() {
		t.Errorf("unexpected errors %+v", summary.Errors)
	}
}

func TestApply_CreateRequiresFields(t *testing.T) {
	a := newTestApplier()
	snap := NewSnapshot("goals")

	summary := a.Apply([]domain.Operation{{ID: "g2"}}, snap)

	r := summary.Results[0]
	if r.Status != domain.OperationError || r.Action != domain.ActionCreate {
		t.Errorf("unexpected result %+v", r)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].ID != "g2" {
		t.Fatalf("expected error referencing g2, got %+v", summary.Errors)
	}
	if summary.Errors[0].Classification != domain.ClassValidation {
		t.Errorf("expected validation, got %s", summary.Errors[0].Classification)
	}
	if snap.Dirty() || snap.Len() != 0 {
		t.Error("failed create must not mutate the snapshot")
	}
}

func TestApply_PartialUpdate(t *testing.T) {
	a := newTestApplier()
	snap := NewSnapshot("goals")

	a.Apply([]domain.Operation{{
		ID:      "g3",
		Heading: domain.StrPtr("H"),
		Content: domain.StrPtr("C"),
	}}, snap)
	summary := a.Apply([]domain.Operation{{ID: "g3", Notes: domain.StrPtr("N")}}, snap)

	if summary.Results[0].Action != domain.ActionUpdate {
		t.Errorf("expected update, got %s", summary.Results[0].Action)
	}

	e, ok := snap.Get("g3")
	if !ok {
		t.Fatal("g3 missing")
	}
	if e.Heading != "H" || e.Content != "C" || e.Notes != "N" {
		t.Errorf("unexpected entity %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("creation timestamp not stamped")
	}
}

func TestApply_EmptyStringSemantics(t *testing.T) {
	a := newTestApplier()
	snap := NewSnapshot("goals")

	a.Apply([]domain.Operation{{
		ID:      "g4",
		Heading: domain.StrPtr("H"),
		Content: domain.StrPtr("C"),
		Notes:   domain.StrPtr("N"),
	}}, snap)
	a.Apply([]domain.Operation{{
		ID:      "g4",
		Heading: domain.StrPtr(""),
		Notes:   domain.StrPtr(""),
	}}, snap)

	e, _ := snap.Get("g4")
	if e.Heading != "H" {
		t.Errorf("empty heading must not overwrite, got %q", e.Heading)
	}
	if e.Notes != "" {
		t.Errorf("notes should be cleared by explicit empty string, got %q", e.Notes)
	}
}

func TestApply_FailureIsolation(t *testing.T) {
	a := newTestApplier()
	snap := NewSnapshot("goals")

	ops := []domain.Operation{
		{ID: "a", Heading: domain.StrPtr("A"), Content: domain.StrPtr("a")},
		{Heading: domain.StrPtr("no id"), Content: domain.StrPtr("x")},
		{ID: "b", Heading: domain.StrPtr("B")},
		{ID: "c", Heading: domain.StrPtr("C"), Content: domain.StrPtr("c")},
		{ID: "a", Delete: true},
	}
	summary := a.Apply(ops, snap)

	if len(summary.Results) != len(ops) {
		t.Fatalf("expected %d results, got %d", len(ops), len(summary.Results))
	}
	expect := []domain.OperationStatus{
		domain.OperationSuccess,
		domain.OperationError,
		domain.OperationError,
		domain.OperationSuccess,
		domain.OperationSuccess,
	}
	for i, s := range expect {
		if summary.Results[i].Status != s {
			t.Errorf("op %d: expected %s, got %s", i, s, summary.Results[i].Status)
		}
	}

	if len(summary.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %+v", summary.Errors)
	}
	if summary.Errors[0].ID != "unknown" || summary.Errors[1].ID != "b" {
		t.Errorf("unexpected error ids %+v", summary.Errors)
	}
	if summary.Applied() != 3 {
		t.Errorf("expected 3 applied, got %d", summary.Applied())
	}

	if ids := snap.IDs(); len(ids) != 1 || ids[0] != "c" {
		t.Errorf("expected only c to remain, got %v", ids)
	}
	if !snap.Dirty() {
		t.Error("expected dirty flag")
	}

	activity := snap.Activity()
	if len(activity) != 3 {
		t.Fatalf("expected 3 activity records, got %d", len(activity))
	}
	wantActions := []domain.OperationAction{domain.ActionCreate, domain.ActionCreate, domain.ActionDelete}
	for i, act := range activity {
		if act.Action != wantActions[i] || act.Type != "goals" || act.Status != domain.OperationSuccess {
			t.Errorf("activity %d: unexpected %+v", i, act)
		}
	}
}

func TestApply_NilSnapshot(t *testing.T) {
	a := newTestApplier()
	summary := a.Apply([]domain.Operation{{ID: "x", Delete: true}}, nil)
	if summary.Results[0].Status != domain.OperationError || len(summary.Errors) != 1 {
		t.Errorf("expected failure without snapshot, got %+v", summary)
	}
}

func TestSnapshot_JSONRoundTripKeepsOrder(t *testing.T) {
	a := newTestApplier()
	snap := NewSnapshot("goals")
	for _, id := range []string{"z", "a", "m"} {
		a.Apply([]domain.Operation{{ID: id, Heading: domain.StrPtr(id), Content: domain.StrPtr(id)}}, snap)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	restored := NewSnapshot("")
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if restored.Name() != "goals" {
		t.Errorf("expected goals, got %s", restored.Name())
	}
	ids := restored.IDs()
	if len(ids) != 3 || ids[0] != "z" || ids[1] != "a" || ids[2] != "m" {
		t.Errorf("expected insertion order preserved, got %v", ids)
	}
	if restored.Dirty() {
		t.Error("decoded snapshot should start clean")
	}
}

func TestSnapshot_RejectsDuplicates(t *testing.T) {
	data := []byte(`{"name":"goals","entities":[{"id":"a"},{"id":"a"}]}`)
	if err := json.Unmarshal(data, NewSnapshot("")); err == nil {
		t.Error("expected duplicate id error")
	}
}
