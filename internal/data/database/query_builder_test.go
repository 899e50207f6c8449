package database

import (
	"strings"
	"testing"
)

func TestBuildListQuery_BasicSelect(t *testing.T) {
	opts := NewListQueryOptions("jobs")
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "jobs"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_WithColumns(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithColumns("id", "election_id", "status"),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT "id", "election_id", "status" FROM "jobs"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_WithQualifiedColumns(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithColumns("jobs.id", "jobs.status", "chunk_audit.outcome"),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT "jobs"."id", "jobs"."status", "chunk_audit"."outcome" FROM "jobs"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_CountOnly(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithCountOnly(),
		WithCondition(WhereCond("status", Equal, "queued")),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT COUNT(*) FROM "jobs" WHERE "status" = $1`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 1 || args[0] != "queued" {
		t.Errorf("Expected args [queued], got %v", args)
	}
}

func TestBuildListQuery_WhereConditions(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithCondition(WhereCond("election_id", Equal, "e-2026")),
		WithCondition(WhereCond("total_chunks", GreaterThan, 10)),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "jobs" WHERE "election_id" = $1 AND "total_chunks" > $2`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 2 || args[0] != "e-2026" || args[1] != 10 {
		t.Errorf("Expected args [e-2026, 10], got %v", args)
	}
}

func TestBuildListQuery_WhereIn_StringSlice(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithCondition(WhereCond("status", In, []string{"queued", "in_progress"})),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "jobs" WHERE "status" IN ($1, $2)`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 2 || args[0] != "queued" || args[1] != "in_progress" {
		t.Errorf("Expected args [queued, in_progress], got %v", args)
	}
}

func TestBuildListQuery_WhereIn_IntSlice(t *testing.T) {
	opts := NewListQueryOptions("chunk_audit",
		WithCondition(WhereCond("chunk_index", In, []int{0, 3, 7})),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "chunk_audit" WHERE "chunk_index" IN ($1, $2, $3)`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 3 || args[0] != 0 || args[1] != 3 || args[2] != 7 {
		t.Errorf("Expected args [0, 3, 7], got %v", args)
	}
}

func TestBuildListQuery_WhereIn_EmptySliceSkipped(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithCondition(WhereCond("status", In, []string{})),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "jobs"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %v", args)
	}
}

func TestBuildListQuery_JSONTextCondition(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithCondition(WhereCond(JSONText("metadata", "guardian_id"), Equal, "guardian-3")),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "jobs" WHERE "metadata"->>'guardian_id' = $1`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 1 || args[0] != "guardian-3" {
		t.Errorf("Expected args [guardian-3], got %v", args)
	}
}

func TestBuildListQuery_JSONTextColumnWithAlias(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithColumns("id", JSONText("metadata", "guardian_id")+" AS guardian_id"),
	)
	query, _ := BuildListQuery(opts)

	expected := `SELECT "id", "metadata"->>'guardian_id' AS "guardian_id" FROM "jobs"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
}

func TestJSONText_SanitizesPath(t *testing.T) {
	got := JSONText("metadata", "guardian'; DROP TABLE jobs; --")
	expected := `"metadata"->>'guardianDROPTABLEjobs--'`
	if got != expected {
		t.Errorf("JSONText() = %q, want %q", got, expected)
	}
}

func TestBuildListQuery_WhereCustom_SingleParam(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithCondition(WhereCond("election_id", Equal, "e-2026")),
		WithCondition(WhereRawCond("processed_chunks + failed_chunks < total_chunks")),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "jobs" WHERE "election_id" = $1 AND processed_chunks + failed_chunks < total_chunks`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 1 || args[0] != "e-2026" {
		t.Errorf("Expected args [e-2026], got %v", args)
	}
}

func TestBuildListQuery_WhereCustom_Renumbered(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithCondition(WhereCond("status", Equal, "failed")),
		WithCondition(WhereRawCond("updated_at BETWEEN $1 AND $2", "2026-01-01", "2026-02-01")),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "jobs" WHERE "status" = $1 AND updated_at BETWEEN $2 AND $3`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 3 || args[0] != "failed" || args[1] != "2026-01-01" || args[2] != "2026-02-01" {
		t.Errorf("Expected 3 renumbered args, got %v", args)
	}
}

func TestBuildListQuery_OrderLimitOffset(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithCondition(WhereCond("election_id", Equal, "e-2026")),
		WithOrderBy("created_at", "desc"),
		WithLimit(25),
		WithOffset(50),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "jobs" WHERE "election_id" = $1 ORDER BY "created_at" DESC LIMIT $2 OFFSET $3`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 3 || args[1] != 25 || args[2] != 50 {
		t.Errorf("Expected args with limit/offset, got %v", args)
	}
}

func TestBuildListQuery_InvalidOrderDirDropped(t *testing.T) {
	opts := NewListQueryOptions("jobs",
		WithOrderBy("created_at", "SIDEWAYS"),
	)
	query, _ := BuildListQuery(opts)

	expected := `SELECT * FROM "jobs" ORDER BY "created_at"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
}

func TestBuildListQuery_IdentifierInjectionQuoted(t *testing.T) {
	opts := NewListQueryOptions(`jobs"; DROP TABLE jobs; --`,
		WithCondition(WhereCond(`status" OR "1"="1`, Equal, "queued")),
	)
	query, _ := BuildListQuery(opts)

	// Everything is identifier-quoted, so the attempted injection is inert.
	if !strings.HasPrefix(query, `SELECT * FROM "jobs""; DROP TABLE jobs; --"`) {
		t.Errorf("Table identifier was not quoted: %q", query)
	}
	if !strings.Contains(query, `"status"" OR ""1""=""1" = $1`) {
		t.Errorf("Condition field was not quoted: %q", query)
	}
}

func TestBuildListQuery_NilOptions(t *testing.T) {
	query, args := BuildListQuery(nil)
	if query != "" || args != nil {
		t.Errorf("Expected empty query for nil options, got %q / %v", query, args)
	}
}
