package recordingdb

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gowvp/exporter/internal/core/recording"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func generateMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	return gdb, mock, err
}

type limitPager int

func (p limitPager) Offset() int { return 0 }
func (p limitPager) Limit() int  { return int(p) }

func TestRecordingFindOverlap(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	store := NewRecording(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "recordings" WHERE camera = \$1 AND \(?start_time < \$2 AND end_time > \$3\)?`).
		WithArgs("front", 2000.0, 1000.0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "recordings" WHERE camera = \$1 AND \(?start_time < \$2 AND end_time > \$3\)? ORDER BY start_time ASC, id ASC LIMIT \$4`).
		WithArgs("front", 2000.0, 1000.0, 1000).
		WillReturnRows(sqlmock.NewRows([]string{"id", "camera", "path", "start_time", "end_time", "duration"}).
			AddRow("a", "front", "front/a.mp4", 990.0, 1000.5, 10.5).
			AddRow("b", "front", "front/b.mp4", 1000.5, 1010.0, 9.5))

	var out []*recording.Recording
	total, err := store.Find(context.Background(), &out, limitPager(1000),
		orm.Where("camera = ?", "front"),
		orm.Where("start_time < ? AND end_time > ?", 2000.0, 1000.0),
		orm.OrderBy("start_time ASC, id ASC"),
	)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(out) != 2 {
		t.Fatalf("expect 2 rows, got total[%d] len[%d]", total, len(out))
	}
	if out[0].ID != "a" || out[1].StartTime != 1000.5 {
		t.Fatalf("unexpected rows %+v %+v", out[0], out[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}

func TestRecordingFindEmptySkipsSelect(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	store := NewRecording(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "recordings" WHERE camera = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	var out []*recording.Recording
	total, err := store.Find(context.Background(), &out, limitPager(1000), orm.Where("camera = ?", "ghost"))
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || len(out) != 0 {
		t.Fatalf("expect empty, got total[%d] len[%d]", total, len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}

func TestFindSegmentsWithoutCount(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	core := recording.NewCore(NewDB(db), recording.WithPageSize(2))

	// 游标翻页只发出 SELECT ... LIMIT，不会执行 count(*)
	mock.ExpectQuery(`SELECT \* FROM "recordings" WHERE camera = \$1 AND \(?start_time < \$2 AND end_time > \$3\)? ORDER BY start_time ASC, id ASC LIMIT \$4`).
		WithArgs("front", 2000.0, 1000.0, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "camera", "path", "start_time", "end_time", "duration"}).
			AddRow("a", "front", "front/a.mp4", 1000.0, 1010.0, 10.0))

	var pages int
	err = core.FindSegments(context.Background(), &recording.FindSegmentsInput{
		Camera: "front", Start: 1000, End: 2000,
	}, func(page []*recording.Recording) error {
		pages++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if pages != 1 {
		t.Fatalf("expect 1 page, got %d", pages)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}
