package stream

import (
	"time"

	"github.com/zhouzirui/hotel-checkin/backend/internal/service/recognition"
)

// Options 流式会话的运行参数
type Options struct {
	MaxFrameBytes    int           // 单帧字节数上限
	MinFrameInterval time.Duration // 最小帧间隔，准入控制
	InferenceTimeout time.Duration // 单次推理调用时限
	IdleTimeout      time.Duration // 无入站帧后强制关闭的时长
	CloseGrace       time.Duration // 关闭时等待在途推理的宽限期
	LookupTimeout    time.Duration // 预订查询时限
	InferenceMaxDim  int           // 推理前降采样的最长边
	Recognition      recognition.Config
}

// DefaultOptions 默认会话参数
func DefaultOptions() *Options {
	return &Options{
		MaxFrameBytes:    2 << 20,
		MinFrameInterval: 100 * time.Millisecond,
		InferenceTimeout: 2 * time.Second,
		IdleTimeout:      30 * time.Second,
		CloseGrace:       3 * time.Second,
		LookupTimeout:    5 * time.Second,
		InferenceMaxDim:  640,
		Recognition:      recognition.DefaultConfig(),
	}
}

// normalized 用默认值补齐未设置的字段
func (o *Options) normalized() *Options {
	def := DefaultOptions()
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = def.MaxFrameBytes
	}
	if o.InferenceTimeout <= 0 {
		o.InferenceTimeout = def.InferenceTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = def.IdleTimeout
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = def.CloseGrace
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = def.LookupTimeout
	}
	if o.InferenceMaxDim <= 0 {
		o.InferenceMaxDim = def.InferenceMaxDim
	}
	return o
}
