package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hitoshi/roomfinder/internal/model"
)

// DefaultResolveTimeout は1回のロール解決に許す最大時間。
const DefaultResolveTimeout = 10 * time.Second

// Outcome はロール解決の結果種別。
type Outcome string

const (
	OutcomeFound       Outcome = "found"
	OutcomeProvisioned Outcome = "provisioned"
	OutcomeNeedsRole   Outcome = "needs_role"
	OutcomeFailed      Outcome = "failed"
	OutcomeStale       Outcome = "stale"
)

// Request はロール解決の入力。
type Request struct {
	UserID   string
	Metadata model.SignupMetadata
	Email    string
}

// Result はロール解決の結果。
// Outcome が OutcomeStale の場合、結果は公開されていない。
type Result struct {
	Token   uint64
	Outcome Outcome
	Role    model.Role
	Err     error
}

// Publisher はロール解決結果の公開先。
// PublishRole はトークンが最新であることの確認と状態の書き込みを不可分に行い、
// 公開した場合に true を返す。
type Publisher interface {
	PublishRole(token uint64, role model.Role, err error) bool
}

// ResolverConfig はResolverの設定。
type ResolverConfig struct {
	// Timeout は1回の解決に許す時間。0以下の場合はDefaultResolveTimeout。
	Timeout time.Duration
}

// Resolver はユーザーIDからロールを解決する。
//
// 解決のたびに単調増加のトークンを発行し、最後に発行されたトークンの結果だけを公開する。
// 完了順ではなく発行順で勝敗が決まるため、遅い古い問い合わせが新しい結果を上書きすることはない。
type Resolver struct {
	profiles  ProfileStore
	publisher Publisher
	timeout   time.Duration

	seq atomic.Uint64
}

// NewResolver はResolverを生成する。publisherがnilの場合は結果を返すのみで公開しない。
func NewResolver(profiles ProfileStore, publisher Publisher, cfg ResolverConfig) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Resolver{
		profiles:  profiles,
		publisher: publisher,
		timeout:   timeout,
	}
}

// Issue は新しいトークンを発行する。発行したトークンが以後の最新になる。
// 問い合わせを伴わずに発行すると、実行中の解決をすべて無効化できる。
func (r *Resolver) Issue() uint64 {
	return r.seq.Add(1)
}

// Current は最後に発行されたトークンを返す。
func (r *Resolver) Current() uint64 {
	return r.seq.Load()
}

// IsCurrent はトークンが最新かどうかを返す。
func (r *Resolver) IsCurrent(token uint64) bool {
	return r.seq.Load() == token
}

// Resolve はトークンを発行してロールを解決する。
func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	if req.UserID == "" {
		return Result{Outcome: OutcomeFailed, Err: ErrEmptyUserID}
	}
	return r.Run(ctx, r.Issue(), req)
}

// Run は発行済みのトークンでロールを解決する。
// 問い合わせ後と書き込み後の2回、トークンが最新かを確認し、古ければ結果を破棄する。
func (r *Resolver) Run(ctx context.Context, token uint64, req Request) Result {
	if req.UserID == "" {
		return Result{Token: token, Outcome: OutcomeFailed, Err: ErrEmptyUserID}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.run(ctx, token, req)

	attrs := []any{
		slog.String("user_id", req.UserID),
		slog.Uint64("token", token),
		slog.String("outcome", string(res.Outcome)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	switch res.Outcome {
	case OutcomeFailed:
		slog.Error("role resolution failed", append(attrs, slog.String("error", res.Err.Error()))...)
	case OutcomeStale:
		slog.Debug("role resolution discarded", attrs...)
	default:
		slog.Info("role resolved", append(attrs, slog.String("role", res.Role.String()))...)
	}

	return res
}

func (r *Resolver) run(ctx context.Context, token uint64, req Request) Result {
	rec, err := r.profiles.GetRole(ctx, req.UserID)
	if !r.IsCurrent(token) {
		return Result{Token: token, Outcome: OutcomeStale}
	}

	notFound := errors.Is(err, ErrNotFound) || (err == nil && rec == nil)
	switch {
	case err != nil && !notFound:
		return r.publish(token, OutcomeFailed, model.RoleNone, fmt.Errorf("failed to get role: %w", err))
	case !notFound && rec.Role.Valid():
		return r.publish(token, OutcomeFound, rec.Role, nil)
	case !notFound:
		// 保存済みのレコードがあるため自動作成はせず、ロール未確定として選択させる
		slog.Warn("ignoring unknown stored role",
			slog.String("user_id", req.UserID),
			slog.String("role", rec.Role.String()),
		)
		return r.publish(token, OutcomeNeedsRole, model.RoleNone, nil)
	}

	hint := req.Metadata.Role
	if hint != model.RoleNone && !hint.Valid() {
		slog.Warn("ignoring unknown signup role",
			slog.String("user_id", req.UserID),
			slog.String("role", hint.String()),
		)
		hint = model.RoleNone
	}
	if hint == model.RoleNone {
		return r.publish(token, OutcomeNeedsRole, model.RoleNone, nil)
	}

	email := req.Email
	if email == "" {
		email = req.Metadata.Email
	}

	rec, err = r.profiles.CreateRole(ctx, req.UserID, hint, email)
	if !r.IsCurrent(token) {
		return Result{Token: token, Outcome: OutcomeStale}
	}
	if err != nil {
		return r.publish(token, OutcomeFailed, model.RoleNone, fmt.Errorf("failed to provision role: %w", err))
	}

	// 同時作成で他方が勝った場合は保存済みのロールに従う
	role := hint
	if rec != nil && rec.Role.Valid() {
		role = rec.Role
	}
	return r.publish(token, OutcomeProvisioned, role, nil)
}

func (r *Resolver) publish(token uint64, outcome Outcome, role model.Role, err error) Result {
	if r.publisher != nil && !r.publisher.PublishRole(token, role, err) {
		return Result{Token: token, Outcome: OutcomeStale}
	}
	return Result{Token: token, Outcome: outcome, Role: role, Err: err}
}
