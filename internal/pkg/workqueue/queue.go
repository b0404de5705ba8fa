// Package workqueue 提供一个并发安全的 FIFO 队列，支持阻塞出队与重新入队
package workqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed 队列已关闭且为空
var ErrClosed = errors.New("workqueue: closed")

// Queue 并发安全的 FIFO 队列
// Push 追加到队尾，Pop 从队首取出；Close 之后 Pop 在队列为空时返回 ErrClosed
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	notify chan struct{} // 容量为 1，有新元素时唤醒一个等待者
	done   chan struct{} // Close 时关闭，唤醒所有等待者
}

// New 创建队列
func New[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push 入队，队列已关闭时返回 false
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.signal()
	return true
}

// TryPop 非阻塞出队
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop 阻塞出队，直到有元素、队列关闭或 ctx 结束
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		item, ok := q.popLocked()
		remaining := len(q.items)
		closed := q.closed
		q.mu.Unlock()

		if ok {
			// 还有剩余元素时继续唤醒其他等待者
			if remaining > 0 {
				q.signal()
			}
			return item, nil
		}
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.done:
		case <-q.notify:
		}
	}
}

// Close 关闭队列，已入队的元素仍可被取出
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Len 当前队列长度
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
