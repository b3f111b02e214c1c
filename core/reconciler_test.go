package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestReconcile_AbsentSnapshotIsCreate(t *testing.T) {
	record := CanonicalRecord{EntityType: EntityWorker, NaturalKey: "k", Fields: map[string]Value{"email": String("a@b.c")}}
	decision := Reconcile(record, nil)
	if decision.Kind != DecisionCreate || decision.Base != nil {
		t.Fatalf("expected CREATE without base, got %+v", decision)
	}
}

func TestReconcile_ChangedFieldsFollowSchemaOrder(t *testing.T) {
	snapshot := &Snapshot{
		RecordID: "r1",
		Version:  3,
		Fields: map[string]Value{
			"first_name": String("Ana"),
			"email":      String("ana@old.example"),
			"is_active":  Bool(true),
			"pay_rate":   Number(20),
		},
	}
	record := CanonicalRecord{
		EntityType: EntityWorker,
		Fields: map[string]Value{
			"is_active":  Bool(false),
			"pay_rate":   Number(20),
			"email":      String("ana@new.example"),
			"first_name": String("Ana"),
			"zz_custom":  String("x"),
			"aa_custom":  String("y"),
		},
	}
	decision := Reconcile(record, snapshot)
	if decision.Kind != DecisionUpdate {
		t.Fatalf("expected UPDATE, got %s", decision.Kind)
	}
	got := strings.Join(decision.ChangedFields, ",")
	if got != "email,is_active,aa_custom,zz_custom" {
		t.Fatalf("unexpected changed field order: %s", got)
	}
	if decision.Base == nil || decision.Base.Version != 3 {
		t.Fatalf("expected base snapshot to be carried, got %+v", decision.Base)
	}
}

func TestReconcile_AbsentFieldsAreSkipped(t *testing.T) {
	snapshot := &Snapshot{Fields: map[string]Value{
		"first_name": String("Ana"),
		"last_name":  String("Lima"),
	}}
	record := CanonicalRecord{EntityType: EntityWorker, Fields: map[string]Value{"first_name": String("Ana")}}
	if decision := Reconcile(record, snapshot); decision.Kind != DecisionNoOp {
		t.Fatalf("expected NO_OP when only a carried field matches, got %+v", decision)
	}
}

func TestReconcile_NullSafeComparison(t *testing.T) {
	snapshot := &Snapshot{Fields: map[string]Value{
		"phone": Null(),
		"title": String("Lead"),
	}}
	same := CanonicalRecord{EntityType: EntityWorker, Fields: map[string]Value{"phone": Null()}}
	if decision := Reconcile(same, snapshot); decision.Kind != DecisionNoOp {
		t.Fatalf("null vs null should be NO_OP, got %+v", decision)
	}
	cleared := CanonicalRecord{EntityType: EntityWorker, Fields: map[string]Value{"title": Null()}}
	decision := Reconcile(cleared, snapshot)
	if decision.Kind != DecisionUpdate || strings.Join(decision.ChangedFields, ",") != "title" {
		t.Fatalf("explicit null should clear title, got %+v", decision)
	}
	empty := CanonicalRecord{EntityType: EntityWorker, Fields: map[string]Value{"phone": String("")}}
	if decision := Reconcile(empty, snapshot); decision.Kind != DecisionUpdate {
		t.Fatalf("empty string differs from null, got %+v", decision)
	}
}

func TestReconcile_TimestampPrecision(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	snapshot := &Snapshot{Fields: map[string]Value{
		"hire_date":         Timestamp(base),
		"source_updated_at": Timestamp(base),
	}}
	record := CanonicalRecord{EntityType: EntityWorker, Fields: map[string]Value{
		"hire_date":         Timestamp(base.Add(3 * time.Hour)),
		"source_updated_at": Timestamp(base.Add(400 * time.Millisecond)),
	}}
	if decision := Reconcile(record, snapshot); decision.Kind != DecisionNoOp {
		t.Fatalf("expected sub-precision differences to be ignored, got %+v", decision)
	}
	record.Fields["source_updated_at"] = Timestamp(base.Add(2 * time.Second))
	decision := Reconcile(record, snapshot)
	if strings.Join(decision.ChangedFields, ",") != "source_updated_at" {
		t.Fatalf("expected source_updated_at change, got %+v", decision)
	}
}

func TestReconcile_NormalizeRoundTripIsNoOp(t *testing.T) {
	normalizer := newTestNormalizer(t)
	record, err := normalizer.Normalize(context.Background(), []byte(fullPunchPayload), EntityTimesheet, "acme")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	snapshot := record.AsSnapshot("r1")
	again, err := normalizer.Normalize(context.Background(), []byte(fullPunchPayload), EntityTimesheet, "acme")
	if err != nil {
		t.Fatalf("normalize again: %v", err)
	}
	if decision := Reconcile(again, &snapshot); decision.Kind != DecisionNoOp {
		t.Fatalf("expected NO_OP for identical payload, got %+v", decision)
	}
}
