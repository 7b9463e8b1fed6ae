package migrations

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApplyExecutesAllMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	names, err := Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) != 6 {
		t.Fatalf("expected 6 migrations, got %v", names)
	}
	for range names {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := Apply(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyStopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS auth").WillReturnError(sqlmock.ErrCancelled)

	if err := Apply(context.Background(), db); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPoliciesCoverEveryTable(t *testing.T) {
	body, err := files.ReadFile("sql/0006_policies.sql")
	if err != nil {
		t.Fatalf("read policies: %v", err)
	}
	sql := string(body)

	for _, table := range []string{"challenges", "commitments", "posts", "connections", "profiles"} {
		enable := regexp.MustCompile(`ALTER TABLE ` + table + `\s+ENABLE ROW LEVEL SECURITY`)
		if !enable.MatchString(sql) {
			t.Errorf("row level security not enabled on %s", table)
		}
	}

	want := map[string]string{
		"challenges_update_own":  "owner_id = auth.uid()",
		"commitments_insert_own": "user_id = auth.uid()",
		"posts_delete_own":       "author_id = auth.uid()",
		"connections_insert_own": "requester_id = auth.uid()",
		"connections_delete_own": "requester_id = auth.uid()",
	}
	for policy, check := range want {
		start := strings.Index(sql, "CREATE POLICY "+policy+" ")
		if start < 0 {
			t.Errorf("policy %s missing", policy)
			continue
		}
		stmt := sql[start:]
		stmt = stmt[:strings.Index(stmt, ";")]
		if !strings.Contains(stmt, check) {
			t.Errorf("policy %s does not check %q: %s", policy, check, stmt)
		}
	}

	for _, forbidden := range []string{"commitments_update", "commitments_delete"} {
		if strings.Contains(sql, forbidden) {
			t.Errorf("commitments must stay immutable, found %s", forbidden)
		}
	}
}
