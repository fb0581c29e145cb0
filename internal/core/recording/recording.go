package recording

import (
	"context"
	"database/sql"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"gorm.io/gorm"
)

// RecordingStorer Instantiation interface
type RecordingStorer interface {
	Find(context.Context, *[]*Recording, orm.Pager, ...orm.QueryOption) (int64, error)
	// List 按条件取前 limit 条，不统计总数
	List(ctx context.Context, bs *[]*Recording, limit int, opts ...orm.QueryOption) error
	Get(context.Context, *Recording, ...orm.QueryOption) error
	Add(context.Context, *Recording) error

	Session(context.Context, ...func(*gorm.DB) error) error
}

// FindSegments 分页查询与窗口有重叠的切片，按开始时间升序逐页回调
// 重叠判定使用半开区间: start_time < window.end AND end_time > window.start
// 使用 (start_time, id) 游标翻页，页与页之间不会重复或遗漏
// 窗口内没有切片时不回调，也不返回错误
func (c Core) FindSegments(ctx context.Context, in *FindSegmentsInput, fn func(page []*Recording) error) error {
	if in.Camera == "" {
		return reason.ErrBadRequest.Withf("camera is required")
	}
	if in.End < in.Start {
		return reason.ErrBadRequest.Withf("invalid window start[%v] end[%v]", in.Start, in.End)
	}

	var last *Recording
	for {
		query := orm.NewQuery(3).OrderBy("start_time ASC, id ASC")
		query.Where("camera = ?", in.Camera)
		query.Where("start_time < ? AND end_time > ?", in.End, in.Start)
		if last != nil {
			query.Where("(start_time > ? OR (start_time = ? AND id > ?))", last.StartTime, last.StartTime, last.ID)
		}

		page := make([]*Recording, 0, c.pageSize)
		if err := c.store.Recording().List(ctx, &page, c.pageSize, query.Encode()...); err != nil {
			return reason.ErrDB.Withf(`FindSegments in[%+v] err[%s]`, in, err.Error())
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < c.pageSize {
			return nil
		}
		last = page[len(page)-1]
	}
}

// AllSegments 返回窗口内全部切片，仅用于数量有限的场景（如生成 VOD 播放列表）
func (c Core) AllSegments(ctx context.Context, in *FindSegmentsInput) ([]*Recording, error) {
	out := make([]*Recording, 0, 8)
	err := c.FindSegments(ctx, in, func(page []*Recording) error {
		out = append(out, page...)
		return nil
	})
	return out, err
}

// boundsRow 用于接收聚合查询结果，空集合时 MIN/MAX 为 NULL
type boundsRow struct {
	MinStartTime sql.NullFloat64 `gorm:"column:min_start_time"`
	MaxEndTime   sql.NullFloat64 `gorm:"column:max_end_time"`
	Count        int64           `gorm:"column:cnt"`
}

// Bounds 查询窗口内切片的最早开始、最晚结束与数量
func (c Core) Bounds(ctx context.Context, in *FindSegmentsInput) (*Bounds, error) {
	if in.Camera == "" {
		return nil, reason.ErrBadRequest.Withf("camera is required")
	}

	var row boundsRow
	err := c.store.Recording().Session(ctx, func(db *gorm.DB) error {
		return db.Model(&Recording{}).
			Select("MIN(start_time) AS min_start_time, MAX(end_time) AS max_end_time, COUNT(*) AS cnt").
			Where("camera = ?", in.Camera).
			Where("start_time < ? AND end_time > ?", in.End, in.Start).
			Scan(&row).Error
	})
	if err != nil {
		return nil, reason.ErrDB.Withf(`Bounds in[%+v] err[%s]`, in, err.Error())
	}
	return &Bounds{
		MinStartTime: row.MinStartTime.Float64,
		MaxEndTime:   row.MaxEndTime.Float64,
		Count:        row.Count,
	}, nil
}

// GetRecording Query a single object
func (c Core) GetRecording(ctx context.Context, id string) (*Recording, error) {
	var out Recording
	if err := c.store.Recording().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// AddRecording Insert into database
func (c Core) AddRecording(ctx context.Context, in *Recording) error {
	if err := c.store.Recording().Add(ctx, in); err != nil {
		return reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return nil
}
