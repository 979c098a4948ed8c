package contacts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
)

var contactColumns = []string{
	"id", "partition_key", "type", "profile_id", "source_device_id", "seen_profile_id",
	"occurred_at", "duration", "latitude", "longitude", "accuracy", "version",
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleContact(t *testing.T) *models.Contact {
	t.Helper()
	d := 30 * time.Second
	c, err := models.NewContact(7, "dev", 9, 1700000000, &d, models.NewLocation(48.1, 17.1, 5))
	if err != nil {
		t.Fatalf("NewContact: %v", err)
	}
	return c
}

func TestAdd_InsertsAtVersionOne(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	c := sampleContact(t)

	mock.ExpectExec(`INSERT INTO contacts .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs(c.ID().String(), "7", "proximity", int64(7), "dev", int64(9),
			int64(1700000000), int64(30), 48.1, 17.1, 5.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Add(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Version() != 1 {
		t.Fatalf("version = %d, want 1", c.Version())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdd_DuplicateIsConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO contacts`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Add(context.Background(), sampleContact(t))
	if !errors.Is(err, common.ErrorConflict) {
		t.Fatalf("want ErrorConflict, got %v", err)
	}
}

func TestAdd_DriverErrorIsDependencyUnavailable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO contacts`).WillReturnError(errors.New("connection reset"))

	err := repo.Add(context.Background(), sampleContact(t))
	if common.KindOf(err) != common.KindDependencyUnavailable {
		t.Fatalf("want dependency_unavailable, got %v", err)
	}
}

func TestGet_ReturnsRehydratedContact(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM contacts WHERE id = \$1 AND partition_key = \$2`).
		WithArgs(id.String(), "7").
		WillReturnRows(sqlmock.NewRows(contactColumns).
			AddRow(id.String(), "7", "proximity", int64(7), "dev", int64(9), int64(1700000000), nil, 48.1, 17.1, 5.0, int64(4)))

	c, err := repo.Get(context.Background(), id, "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID() != id || c.SeenProfileID() != 9 || c.Version() != 4 {
		t.Fatalf("unexpected contact: %+v", c.Record())
	}
	if _, ok := c.Duration(); ok {
		t.Fatal("duration should be absent")
	}
	if !c.Location().Present() || c.Location().Accuracy() != 5 {
		t.Fatalf("unexpected location: %+v", c.Location())
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM contacts`).WillReturnRows(sqlmock.NewRows(contactColumns))

	_, err := repo.Get(context.Background(), uuid.New(), "7")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGet_PartialLocationIsRejected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM contacts`).
		WillReturnRows(sqlmock.NewRows(contactColumns).
			AddRow(id.String(), "7", "proximity", int64(7), "dev", int64(9), int64(1), nil, 48.1, nil, nil, int64(1)))

	_, err := repo.Get(context.Background(), id, "7")
	if !errors.Is(err, models.ErrPartialLocation) {
		t.Fatalf("want ErrPartialLocation, got %v", err)
	}
}

func TestUpdate_AdvancesVersion(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	c := sampleContact(t)
	c.SetVersion(2)
	c.ClearLocation()

	mock.ExpectQuery(`UPDATE contacts SET .* WHERE id = \$1 AND partition_key = \$2 AND version = \$9 RETURNING version`).
		WithArgs(c.ID().String(), "7", "dev", int64(1700000000), int64(30), nil, nil, nil, int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))

	if err := repo.Update(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Version() != 3 {
		t.Fatalf("version = %d, want 3", c.Version())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdate_StaleVersionIsConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	c := sampleContact(t)
	c.SetVersion(1)

	mock.ExpectQuery(`UPDATE contacts`).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectQuery(`SELECT version FROM contacts`).
		WithArgs(c.ID().String(), "7").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)))

	err := repo.Update(context.Background(), c)
	if !errors.Is(err, common.ErrorConflict) {
		t.Fatalf("want ErrorConflict, got %v", err)
	}
	if c.Version() != 1 {
		t.Fatalf("version must not move on conflict, got %d", c.Version())
	}
}

func TestUpdate_MissingRowIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE contacts`).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectQuery(`SELECT version FROM contacts`).WillReturnRows(sqlmock.NewRows([]string{"version"}))

	err := repo.Update(context.Background(), sampleContact(t))
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestListByPartition_OrdersRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT .* FROM contacts WHERE partition_key = \$1 ORDER BY occurred_at, id`).
		WithArgs("7").
		WillReturnRows(sqlmock.NewRows(contactColumns).
			AddRow(a.String(), "7", "location", int64(7), "dev", int64(0), int64(10), nil, 1.0, 2.0, 3.0, int64(1)).
			AddRow(b.String(), "7", "proximity", int64(7), "dev", int64(9), int64(20), int64(5), nil, nil, nil, int64(2)))

	list, err := repo.ListByPartition(context.Background(), "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].ID() != a || list[1].ID() != b {
		t.Fatalf("unexpected list: %v", list)
	}
	if list[0].Kind() != models.KindLocation {
		t.Fatalf("kind = %s, want location", list[0].Kind())
	}
}

func TestListByPartition_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM contacts`).WillReturnError(context.Canceled)

	_, err := repo.ListByPartition(context.Background(), "7")
	if common.KindOf(err) != common.KindCanceled {
		t.Fatalf("want canceled, got %v", err)
	}
}
