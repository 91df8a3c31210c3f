package ratelimit

import (
	"sync"
	"time"
)

// Limiter はアイデンティティ単位のトークンバケットテーブル。
// バケットは最初のリクエスト時に満タンの状態で遅延生成され、
// プロセスが生きている間は破棄されない。
// 容量と補充レートは生成時に固定され、実行時の再設定はできない。
type Limiter struct {
	// capacity はバケットあたりの最大トークン数。
	capacity float64
	// refillRate は1秒あたりに補充されるトークン数。
	refillRate float64
	// mu はbucketsマップへのアクセスを保護する。
	// バケット自体の更新は各バケットのロックで行い、
	// 無関係なアイデンティティ同士が競合しないようにする。
	mu sync.Mutex
	// buckets はアイデンティティ名からバケットへのマップ。
	buckets map[string]*bucket
	// now は現在時刻の取得関数。テストから差し替える。
	now func() time.Time
}

// bucket は単一アイデンティティのトークンバケット状態。
type bucket struct {
	// mu は補充と消費を1つのクリティカルセクションにまとめる。
	mu sync.Mutex
	// tokens は現在のトークン残量。常に [0, capacity] の範囲。
	tokens float64
	// lastRefill は最後に補充計算を行った時刻。
	lastRefill time.Time
}

// New は新しいLimiterを生成する。
// capacityはバケットあたりの最大リクエスト数、refillPeriodは
// 空のバケットが満タンに戻るまでの時間を指定する。
func New(capacity int, refillPeriod time.Duration) *Limiter {
	return &Limiter{
		capacity:   float64(capacity),
		refillRate: float64(capacity) / refillPeriod.Seconds(),
		buckets:    make(map[string]*bucket),
		now:        time.Now,
	}
}

// TryAcquire はkeyのバケットからトークンを1つ消費する。
// 前回の補充からの経過時間に応じてトークンを補充（容量で頭打ち）した後、
// 残量が1以上であれば1減らしてtrueを返す。不足していれば補充以外の
// 変更は行わずfalseを返す。拒否されたリクエストはキューイングされない。
// 同一keyに対する補充と消費は直列化され、複数のゴルーチンが
// 同じトークンを二重に消費することはない。
func (l *Limiter) TryAcquire(key string) bool {
	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(l.capacity, b.tokens+elapsed*l.refillRate)
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// bucket はkeyに対応するバケットを返す。存在しなければ満タンで生成する。
func (l *Limiter) bucket(key string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     l.capacity,
			lastRefill: l.now(),
		}
		l.buckets[key] = b
	}
	return b
}

// Len は現在生成されているバケット数を返す。
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
