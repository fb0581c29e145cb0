package export

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
)

// FindExports Paginated search
func (c Core) FindExports(ctx context.Context, in *FindExportInput) ([]*Export, int64, error) {
	query := orm.NewQuery(2).OrderBy("created_at DESC")
	if in.Camera != "" {
		query.Where("camera = ?", in.Camera)
	}

	items := make([]*Export, 0, in.Limit())
	total, err := c.store.Export().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// GetExport Query a single object
func (c Core) GetExport(ctx context.Context, id string) (*Export, error) {
	var out Export
	if err := c.store.Export().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelExport 删除导出记录和对应文件
func (c Core) DelExport(ctx context.Context, id string) (*Export, error) {
	out, err := c.GetExport(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(out.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, reason.ErrServer.SetMsg(err.Error())
	}
	if err := c.store.Export().Del(ctx, out, orm.Where("id=?", id)); err != nil {
		return nil, reason.ErrDB.Withf(`Del id[%v] err[%s]`, id, err.Error())
	}
	return out, nil
}

// addExport 登记已完成的导出文件
func (c Core) addExport(ctx context.Context, job Job, path string) error {
	var out Export
	if err := copier.Copy(&out, &job); err != nil {
		return reason.ErrServer.SetMsg(err.Error())
	}
	out.ID = uuid.NewString()
	out.Path = path
	out.Duration = job.Seconds()
	out.CreatedAt = orm.Now()
	if err := c.store.Export().Add(ctx, &out); err != nil {
		return reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return nil
}

// ensureExport 文件已存在但没有对应记录时补登记
func (c Core) ensureExport(ctx context.Context, job Job, path string) error {
	var out Export
	err := c.store.Export().Get(ctx, &out, orm.Where("path = ?", path))
	if err == nil {
		return nil
	}
	if !orm.IsErrRecordNotFound(err) {
		return reason.ErrDB.Withf(`Get path[%v] err[%s]`, path, err.Error())
	}
	slog.InfoContext(ctx, "register unrecorded export", "path", path)
	return c.addExport(ctx, job, path)
}
