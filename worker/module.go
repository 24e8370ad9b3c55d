package worker

import (
	"context"

	"go.uber.org/fx"
)

// Module 后台消费者模块
// 随应用生命周期启动/停止媒体结果消费
var Module = fx.Module("worker",
	fx.Provide(NewMediaWorker, NewMediaPublisher),
	fx.Invoke(func(lc fx.Lifecycle, w *MediaWorker) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return w.Start()
			},
			OnStop: func(ctx context.Context) error {
				return w.Close()
			},
		})
	}),
)
