package workqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestQueue_FIFO(t *testing.T) {
	Convey("Queue 先进先出", t, func() {
		q := New[int]()
		for i := 0; i < 3; i++ {
			So(q.Push(i), ShouldBeTrue)
		}
		So(q.Len(), ShouldEqual, 3)

		ctx := context.Background()
		for i := 0; i < 3; i++ {
			v, err := q.Pop(ctx)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, i)
		}

		_, ok := q.TryPop()
		So(ok, ShouldBeFalse)

		Convey("重新入队的元素排在队尾", func() {
			q.Push(1)
			q.Push(2)
			v, _ := q.Pop(ctx)
			q.Push(v)
			a, _ := q.Pop(ctx)
			b, _ := q.Pop(ctx)
			So([]int{a, b}, ShouldResemble, []int{2, 1})
		})
	})
}

func TestQueue_Close(t *testing.T) {
	Convey("Close 之后", t, func() {
		q := New[string]()
		q.Push("a")
		q.Close()

		Convey("剩余元素仍可取出，之后返回 ErrClosed", func() {
			v, err := q.Pop(context.Background())
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "a")

			_, err = q.Pop(context.Background())
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
		})

		Convey("不再接受新元素", func() {
			So(q.Push("b"), ShouldBeFalse)
		})

		Convey("重复 Close 不会 panic", func() {
			So(func() { q.Close() }, ShouldNotPanic)
		})
	})
}

func TestQueue_BlockingPop(t *testing.T) {
	Convey("Pop 阻塞直到有元素或被取消", t, func() {
		Convey("ctx 取消时返回 ctx 错误", func() {
			q := New[int]()
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err := q.Pop(ctx)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})

		Convey("Close 唤醒所有等待者", func() {
			q := New[int]()
			var wg sync.WaitGroup
			errs := make(chan error, 4)
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := q.Pop(context.Background())
					errs <- err
				}()
			}
			time.Sleep(10 * time.Millisecond)
			q.Close()
			wg.Wait()
			close(errs)
			for err := range errs {
				So(errors.Is(err, ErrClosed), ShouldBeTrue)
			}
		})

		Convey("多个消费者不会丢失元素", func() {
			q := New[int]()
			const n = 200
			var mu sync.Mutex
			seen := make(map[int]bool)
			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						v, err := q.Pop(context.Background())
						if err != nil {
							return
						}
						mu.Lock()
						seen[v] = true
						done := len(seen) == n
						mu.Unlock()
						if done {
							q.Close()
						}
					}
				}()
			}
			for i := 0; i < n; i++ {
				q.Push(i)
			}
			wg.Wait()
			So(len(seen), ShouldEqual, n)
		})
	})
}
