package podcast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/cache"
	podcastrepo "podcaster/internal/repository/podcast"
)

func TestTracker(t *testing.T) {
	Convey("任务状态跟踪", t, func() {
		ctx := context.Background()
		taskCache := newMemoryCache()
		tracker := NewTracker(podcastrepo.NewMemoryTaskRepo(), taskCache)

		task, err := tracker.Create(ctx, "p1", 3)
		So(err, ShouldBeNil)
		So(strings.HasPrefix(task.ID, "task"), ShouldBeTrue)
		So(task.Status, ShouldEqual, podcast.TaskStatusPending)
		So(task.Progress.Total, ShouldEqual, 3)

		outcome := &podcast.SynthesisOutcome{
			Success: true,
			Results: []podcast.SynthesisResult{{Index: 0}, {Index: 1}, {Index: 2}},
			Summary: podcast.SynthesisSummary{Total: 3, Success: 3, RetryableIndices: []int{}},
		}

		Convey("total 必须大于 0", func() {
			_, err := tracker.Create(ctx, "p1", 0)
			So(err, ShouldNotBeNil)
		})

		Convey("pending -> processing -> completed", func() {
			So(tracker.Start(ctx, task.ID), ShouldBeNil)
			So(tracker.Progress(ctx, task.ID, 2, 1), ShouldBeNil)

			got, err := tracker.Get(ctx, task.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, podcast.TaskStatusProcessing)
			So(got.Progress.Completed, ShouldEqual, 2)
			So(got.Progress.CurrentSegment, ShouldEqual, 1)

			Convey("进度不会回退", func() {
				So(tracker.Progress(ctx, task.ID, 1, 0), ShouldBeNil)
				got, err := tracker.Get(ctx, task.ID)
				So(err, ShouldBeNil)
				So(got.Progress.Completed, ShouldEqual, 2)
			})

			So(tracker.Complete(ctx, task.ID, outcome), ShouldBeNil)
			got, err = tracker.Get(ctx, task.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, podcast.TaskStatusCompleted)
			So(got.Progress.Completed, ShouldEqual, 3)
			So(len(got.Results), ShouldEqual, 3)
			So(got.Summary.Success, ShouldEqual, 3)

			Convey("终态不可再变更", func() {
				err := tracker.Fail(ctx, task.ID, "late")
				So(errors.Is(err, podcast.ErrInvalidTransition), ShouldBeTrue)
				err = tracker.Progress(ctx, task.ID, 3, 2)
				So(errors.Is(err, podcast.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("pending 不能直接 completed", func() {
			err := tracker.Complete(ctx, task.ID, outcome)
			So(errors.Is(err, podcast.ErrInvalidTransition), ShouldBeTrue)
		})

		Convey("结果数与 total 不一致时拒绝完成", func() {
			So(tracker.Start(ctx, task.ID), ShouldBeNil)
			short := &podcast.SynthesisOutcome{Results: outcome.Results[:2]}
			err := tracker.Complete(ctx, task.ID, short)
			So(errors.Is(err, podcast.ErrInvalidTransition), ShouldBeTrue)
		})

		Convey("失败必须给出原因", func() {
			err := tracker.Fail(ctx, task.ID, "")
			So(errors.Is(err, podcast.ErrInvalidTransition), ShouldBeTrue)

			So(tracker.Fail(ctx, task.ID, "provider down"), ShouldBeNil)
			got, err := tracker.Get(ctx, task.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, podcast.TaskStatusFailed)
			So(got.ErrorMessage, ShouldEqual, "provider down")
		})

		Convey("缓存未命中时回源并回填", func() {
			So(taskCache.Delete(ctx, cache.SynthesisTaskCacheKey(task.ID)), ShouldBeNil)
			before := taskCache.sets

			got, err := tracker.Get(ctx, task.ID)
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, task.ID)
			So(taskCache.sets, ShouldEqual, before+1)

			var cached podcast.SynthesisTask
			So(taskCache.Get(ctx, cache.SynthesisTaskCacheKey(task.ID), &cached), ShouldBeNil)
			So(cached.Status, ShouldEqual, podcast.TaskStatusPending)
		})

		Convey("不存在的任务", func() {
			_, err := tracker.Get(ctx, "task_missing")
			So(errors.Is(err, podcast.ErrTaskNotFound), ShouldBeTrue)
			err = tracker.Start(ctx, "task_missing")
			So(errors.Is(err, podcast.ErrTaskNotFound), ShouldBeTrue)
		})

		Convey("按播客列出与清理", func() {
			_, err := tracker.Create(ctx, "p1", 1)
			So(err, ShouldBeNil)
			_, err = tracker.Create(ctx, "p2", 1)
			So(err, ShouldBeNil)

			tasks, err := tracker.ListByPodcast(ctx, "p1")
			So(err, ShouldBeNil)
			So(len(tasks), ShouldEqual, 2)

			time.Sleep(5 * time.Millisecond)
			n, err := tracker.Cleanup(ctx, time.Millisecond)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)

			tasks, err = tracker.ListByPodcast(ctx, "p1")
			So(err, ShouldBeNil)
			So(tasks, ShouldBeEmpty)
		})

		Convey("没有缓存时直接读仓库", func() {
			plain := NewTracker(podcastrepo.NewMemoryTaskRepo(), nil)
			created, err := plain.Create(ctx, "p1", 1)
			So(err, ShouldBeNil)
			got, err := plain.Get(ctx, created.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, podcast.TaskStatusPending)
		})
	})
}
