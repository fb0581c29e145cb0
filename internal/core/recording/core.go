package recording

// DefaultPageSize 分页查询切片时每页的数量，限制长时间导出时的内存占用
const DefaultPageSize = 1000

// Storer data persistence
type Storer interface {
	Recording() RecordingStorer
}

// Core business domain
type Core struct {
	store    Storer
	pageSize int
}

type Option func(*Core)

// WithPageSize 设置分页大小，非正数使用默认值
func WithPageSize(size int) Option {
	return func(c *Core) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// NewCore create business domain
func NewCore(store Storer, opts ...Option) Core {
	c := Core{store: store, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// PageSize 当前分页大小
func (c Core) PageSize() int {
	return c.pageSize
}
