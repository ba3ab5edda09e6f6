package audit_repository

import (
	"strings"
	"testing"
	"time"

	"costume-portal/internal/core/domain/models"
)

func TestWhereClauseEmptyCriteria(t *testing.T) {
	where, args := whereClause(models.SearchCriteria{})
	if where != "" {
		t.Errorf("where = %q, want empty", where)
	}
	if args != nil {
		t.Errorf("args = %v, want nil", args)
	}
}

func TestWhereClauseDateRange(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	where, args := whereClause(models.SearchCriteria{From: from, To: to})

	if where != " WHERE created_at >= $1 AND created_at <= $2" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 2 || args[0] != from || args[1] != to {
		t.Errorf("args = %v, want [%v %v]", args, from, to)
	}
}

func TestWhereClauseOpenEndedRange(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	where, args := whereClause(models.SearchCriteria{From: from})

	if where != " WHERE created_at >= $1" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 1 || args[0] != from {
		t.Errorf("args = %v", args)
	}
}

func TestWhereClauseNumbersPlaceholdersInOrder(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	where, args := whereClause(models.SearchCriteria{
		OrganizationID: "org-1",
		OrderNumber:    "CG-1042",
		From:           from,
		Channel:        models.ChannelEmail,
		Status:         models.NotificationSent,
		FreeText:       "fitting",
	})

	want := " WHERE organization_id = $1 AND order_number = $2 AND created_at >= $3" +
		" AND channel = $4 AND status = $5 AND (subject ILIKE $6 OR body ILIKE $6)"
	if where != want {
		t.Errorf("where = %q\nwant    %q", where, want)
	}
	if len(args) != 6 {
		t.Fatalf("got %d args, want 6", len(args))
	}
	if args[5] != "%fitting%" {
		t.Errorf("free text arg = %v, want %%fitting%%", args[5])
	}
}

func TestSearchAndStreamOrderNewestFirst(t *testing.T) {
	for name, query := range map[string]string{
		"search page": searchPageQuery,
		"stream":      streamQuery,
	} {
		if !strings.Contains(query, "ORDER BY created_at DESC") {
			t.Errorf("%s query does not order by created_at DESC: %q", name, query)
		}
	}
}
