// Package cleanup は期限切れの認証データの自動削除ジョブを提供する。
// 期限切れのセッションとマジックリンクを定期的に削除する。
// 期限切れのレコードは参照時に無効として扱われるため、削除は容量の回収が目的である。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/roomfinder/internal/metrics"
)

// ExpiredDeleter は期限切れレコードの削除を抽象化するインターフェース。
// repository.SessionRepository と repository.MagicLinkRepository が満たす。
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は期限切れのセッションとマジックリンクの削除ジョブ。
// 冪等な削除処理で、削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	sessions   ExpiredDeleter
	magicLinks ExpiredDeleter
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time

	// GracePeriod は期限切れ後に保持する期間（デフォルト: 24時間）。
	GracePeriod time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions, magicLinks ExpiredDeleter, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		sessions:    sessions,
		magicLinks:  magicLinks,
		metrics:     collector,
		logger:      logger,
		now:         time.Now,
		GracePeriod: 24 * time.Hour,
	}
}

// Run はGracePeriodより前に期限切れとなったセッションとマジックリンクを削除する。
// 片方の削除に失敗しても、もう片方は実行する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	before := j.now().Add(-j.GracePeriod)

	sessionCount, sessionErr := j.deleteExpired(ctx, "sessions", j.sessions, before)
	linkCount, linkErr := j.deleteExpired(ctx, "magic_links", j.magicLinks, before)

	if sessionErr != nil {
		return sessionErr
	}
	if linkErr != nil {
		return linkErr
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessionCount),
		slog.Int64("deleted_magic_links", linkCount),
		slog.Time("before", before),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

func (j *CleanupJob) deleteExpired(ctx context.Context, kind string, deleter ExpiredDeleter, before time.Time) (int64, error) {
	n, err := deleter.DeleteExpired(ctx, before)
	if err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%sのクリーンアップに失敗: %w", kind, err)
	}
	j.metrics.RecordCleanupDeleted(kind, n)
	return n, nil
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
// 起動直後に1回実行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
