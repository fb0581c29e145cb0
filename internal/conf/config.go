package conf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultConfig 默认配置
func DefaultConfig() Bootstrap {
	return Bootstrap{
		Server: Server{
			HTTP: ServerHTTP{
				Port:    15123,
				Timeout: Duration(60 * time.Second),
			},
		},
		Data: Data{
			Database: Database{
				Dsn:             "configs/data.db",
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: Duration(6 * time.Hour),
				SlowThreshold:   Duration(200 * time.Millisecond),
			},
		},
		Recording: Recording{
			StorageDir: "recordings",
		},
		Export: Export{
			Dir:                "exports",
			FFmpegPath:         "ffmpeg",
			Ext:                "mp4",
			MaxPlaylistSeconds: 7200,
			PageSize:           1000,
			VODBaseURL:         "http://127.0.0.1:15123",
			Workers:            2,
			QueueSize:          32,
			Niceness:           10,
			SynthesizeTimeout:  Duration(6 * time.Hour),
			TrimTimeout:        Duration(time.Hour),
			DiskUsageThreshold: 95,
			TimelapseArgs:      []string{"-vf", "setpts=0.04*PTS", "-r", "30"},
		},
	}
}

// SetupConfig 读取配置文件，文件不存在时写入默认配置
func SetupConfig(path string) (Bootstrap, error) {
	bc := DefaultConfig()
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return bc, WriteConfig(&bc, path)
	}
	if err != nil {
		return bc, err
	}
	if err := toml.Unmarshal(b, &bc); err != nil {
		return bc, fmt.Errorf("parse %s: %w", path, err)
	}
	bc.applyDefaults()
	return bc, nil
}

// WriteConfig 将配置写回文件
func WriteConfig(bc *Bootstrap, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(bc); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// applyDefaults 配置文件中留空或非法的值使用默认值
func (bc *Bootstrap) applyDefaults() {
	def := DefaultConfig().Export
	e := &bc.Export
	if e.Dir == "" {
		e.Dir = def.Dir
	}
	if e.FFmpegPath == "" {
		e.FFmpegPath = def.FFmpegPath
	}
	if e.Ext == "" {
		e.Ext = def.Ext
	}
	if e.MaxPlaylistSeconds <= 0 {
		e.MaxPlaylistSeconds = def.MaxPlaylistSeconds
	}
	if e.PageSize <= 0 {
		e.PageSize = def.PageSize
	}
	if e.Workers <= 0 {
		e.Workers = def.Workers
	}
	if e.QueueSize <= 0 {
		e.QueueSize = def.QueueSize
	}
	if len(e.TimelapseArgs) == 0 {
		e.TimelapseArgs = def.TimelapseArgs
	}
	// niceness 范围 0~19
	e.Niceness = max(e.Niceness, 0)
	e.Niceness = min(e.Niceness, 19)
}
