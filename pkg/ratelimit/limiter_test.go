package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// TestLimiterTryAcquire はTryAcquireメソッドを検証する。
func TestLimiterTryAcquire(t *testing.T) {
	t.Parallel()

	t.Run("新しいアイデンティティは容量分のリクエストが許可されること", func(t *testing.T) {
		t.Parallel()

		limiter := New(5, time.Minute)
		for i := 0; i < 5; i++ {
			if !limiter.TryAcquire("alice") {
				t.Fatalf("%d回目のTryAcquire()が拒否された", i+1)
			}
		}
		if limiter.TryAcquire("alice") {
			t.Error("容量を超えた6回目のTryAcquire()が許可された")
		}
	})

	t.Run("経過時間に応じてトークンが部分的に補充されること", func(t *testing.T) {
		t.Parallel()

		// 容量60・補充期間60秒 = 毎秒1トークン
		limiter := New(60, time.Minute)
		current := time.Unix(1700000000, 0)
		limiter.now = func() time.Time { return current }

		for i := 0; i < 60; i++ {
			if !limiter.TryAcquire("alice") {
				t.Fatalf("%d回目のTryAcquire()が拒否された", i+1)
			}
		}
		if limiter.TryAcquire("alice") {
			t.Fatal("バケットが空の状態でTryAcquire()が許可された")
		}

		// 1秒経過でちょうど1トークン補充される
		current = current.Add(time.Second)
		if !limiter.TryAcquire("alice") {
			t.Error("1秒経過後のTryAcquire()が拒否された")
		}
		if limiter.TryAcquire("alice") {
			t.Error("補充された1トークンを消費した後のTryAcquire()が許可された")
		}
	})

	t.Run("1トークン未満の補充では許可されないこと", func(t *testing.T) {
		t.Parallel()

		limiter := New(60, time.Minute)
		current := time.Unix(1700000000, 0)
		limiter.now = func() time.Time { return current }

		for i := 0; i < 60; i++ {
			limiter.TryAcquire("alice")
		}

		// 0.5秒では0.5トークンしか補充されない
		current = current.Add(500 * time.Millisecond)
		if limiter.TryAcquire("alice") {
			t.Error("補充が1トークン未満の状態でTryAcquire()が許可された")
		}

		// さらに0.5秒経過すると合計1トークンになる
		current = current.Add(500 * time.Millisecond)
		if !limiter.TryAcquire("alice") {
			t.Error("合計1秒経過後のTryAcquire()が拒否された")
		}
	})

	t.Run("長時間経過してもトークンが容量を超えないこと", func(t *testing.T) {
		t.Parallel()

		limiter := New(3, time.Minute)
		current := time.Unix(1700000000, 0)
		limiter.now = func() time.Time { return current }

		if !limiter.TryAcquire("alice") {
			t.Fatal("最初のTryAcquire()が拒否された")
		}

		// 1時間放置しても容量の3までしか補充されない
		current = current.Add(time.Hour)
		for i := 0; i < 3; i++ {
			if !limiter.TryAcquire("alice") {
				t.Fatalf("%d回目のTryAcquire()が拒否された", i+1)
			}
		}
		if limiter.TryAcquire("alice") {
			t.Error("容量を超えたTryAcquire()が許可された")
		}
	})

	t.Run("アイデンティティごとにバケットが独立していること", func(t *testing.T) {
		t.Parallel()

		limiter := New(2, time.Minute)
		limiter.TryAcquire("alice")
		limiter.TryAcquire("alice")
		if limiter.TryAcquire("alice") {
			t.Error("aliceのバケットが空の状態でTryAcquire()が許可された")
		}

		// aliceが枯渇してもbobは影響を受けない
		if !limiter.TryAcquire("bob") {
			t.Error("bobの最初のTryAcquire()が拒否された")
		}
		if limiter.Len() != 2 {
			t.Errorf("Len() = %d, want 2", limiter.Len())
		}
	})

	t.Run("並行アクセスでも容量を超えて許可されないこと", func(t *testing.T) {
		t.Parallel()

		limiter := New(10, time.Hour)

		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0

		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.TryAcquire("alice") {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if admitted != 10 {
			t.Errorf("許可されたリクエスト数 = %d, want 10", admitted)
		}
	})

	t.Run("異なるアイデンティティへの並行アクセスがそれぞれの容量で許可されること", func(t *testing.T) {
		t.Parallel()

		limiter := New(5, time.Hour)
		keys := []string{"alice", "bob", "carol"}

		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := make(map[string]int)

		for _, key := range keys {
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(k string) {
					defer wg.Done()
					if limiter.TryAcquire(k) {
						mu.Lock()
						admitted[k]++
						mu.Unlock()
					}
				}(key)
			}
		}
		wg.Wait()

		for _, key := range keys {
			if admitted[key] != 5 {
				t.Errorf("admitted[%s] = %d, want 5", key, admitted[key])
			}
		}
	})
}
