package podcast

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"podcaster/internal/config"
	"podcaster/internal/model/podcast"
	"podcaster/internal/pkg/tts"
	podcastrepo "podcaster/internal/repository/podcast"
)

// voiceProvider 额外实现 ListVoices
type voiceProvider struct {
	*fakeTimestampProvider
}

func (p *voiceProvider) ListVoices(ctx context.Context, language string) ([]tts.VoiceModel, error) {
	return []tts.VoiceModel{{ID: "v1", Name: "Rachel", LanguageCodes: []string{language}, Provider: p.ID()}}, nil
}

func newTestService(env *testEnv, tool AudioTool) *Service {
	return NewService(Options{
		Registry:        env.registry,
		Storage:         env.storage,
		Tracker:         NewTracker(podcastrepo.NewMemoryTaskRepo(), newMemoryCache()),
		Orchestrator:    OrchestratorOptions{Concurrency: 2, MaxRetries: 1},
		AudioTool:       tool,
		GapSeconds:      0.5,
		DefaultProvider: "fake",
	})
}

func TestService(t *testing.T) {
	Convey("播客语音服务", t, func() {
		ctx := context.Background()
		provider := &voiceProvider{&fakeTimestampProvider{newFakeProvider("fake", withDurations(map[string]float64{
			"seg-0": 1.2, "seg-1": 1.5, "seg-2": 0.8,
		}))}}
		env := newTestEnv(t, provider)
		svc := newTestService(env, nil)
		voices := map[string]string{"Alice": "a", "Bob": "b"}

		Convey("同步合成使用默认 provider", func() {
			outcome, err := svc.Synthesize(ctx, &SynthesisRequest{
				PodcastID: "p1", Segments: segments(3, "Alice", "Bob"), VoiceMap: voices,
			})
			So(err, ShouldBeNil)
			So(outcome.Success, ShouldBeTrue)
			So(outcome.Results[2].ProviderID, ShouldEqual, "fake")
		})

		Convey("非法请求返回错误", func() {
			_, err := svc.Synthesize(ctx, &SynthesisRequest{PodcastID: "p1"})
			So(errors.Is(err, ErrNoSegments), ShouldBeTrue)

			_, err = svc.StartSynthesis(ctx, &SynthesisRequest{PodcastID: "p1"})
			So(errors.Is(err, ErrNoSegments), ShouldBeTrue)
		})

		Convey("异步合成完成后进度等于总数", func() {
			task, err := svc.StartSynthesis(ctx, &SynthesisRequest{
				PodcastID: "p1", Segments: segments(3, "Alice", "Bob"), VoiceMap: voices,
			})
			So(err, ShouldBeNil)
			So(task.Status, ShouldEqual, podcast.TaskStatusPending)
			svc.Wait()

			got, err := svc.GetTask(ctx, task.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, podcast.TaskStatusCompleted)
			So(got.Progress.Completed, ShouldEqual, 3)
			So(got.Progress.Total, ShouldEqual, 3)
			So(len(got.Results), ShouldEqual, 3)
			So(got.Summary.Success, ShouldEqual, 3)

			tasks, err := svc.ListTasks(ctx, "p1")
			So(err, ShouldBeNil)
			So(len(tasks), ShouldEqual, 1)
		})

		Convey("部分失败的批次任务仍为 completed", func() {
			task, err := svc.StartSynthesis(ctx, &SynthesisRequest{
				PodcastID: "p1", Segments: segments(2, "Alice", "Carol"), VoiceMap: voices,
			})
			So(err, ShouldBeNil)
			svc.Wait()

			got, err := svc.GetTask(ctx, task.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, podcast.TaskStatusCompleted)
			So(got.Summary.Skipped, ShouldEqual, 1)
			So(got.Summary.RetryableIndices, ShouldResemble, []int{1})
		})

		Convey("合并时自动生成时间线", func() {
			_, err := svc.Synthesize(ctx, &SynthesisRequest{
				PodcastID: "p1", Segments: segments(3, "Alice", "Bob"), VoiceMap: voices,
			})
			So(err, ShouldBeNil)

			// 没有 AudioTool 时默认策略退回 memory
			artifact, err := svc.Merge(ctx, "p1", "")
			So(err, ShouldBeNil)
			So(artifact.Strategy, ShouldEqual, config.StrategyMemory)
			So(artifact.Duration, ShouldAlmostEqual, 4.5, 0.001)

			exists, err := env.storage.Exists(ctx, TimelineKey("p1"))
			So(err, ShouldBeNil)
			So(exists, ShouldBeTrue)

			statuses, err := svc.SegmentStatuses(ctx, "p1")
			So(err, ShouldBeNil)
			So(len(statuses), ShouldEqual, 3)
			So(statuses[0].Status, ShouldEqual, podcast.SegmentFileStatusSuccess)
		})

		Convey("重新合成段落后合并使用最新的文件", func() {
			_, err := svc.Synthesize(ctx, &SynthesisRequest{
				PodcastID: "p1", Segments: segments(3, "Alice", "Bob"), VoiceMap: voices, BaseStamp: 1000,
			})
			So(err, ShouldBeNil)
			_, err = svc.BuildTimeline(ctx, "p1")
			So(err, ShouldBeNil)
			artifact, err := svc.Merge(ctx, "p1", config.StrategyMemory)
			So(err, ShouldBeNil)
			So(artifact.Duration, ShouldAlmostEqual, 4.5, 0.001)

			retake := segments(3, "Alice", "Bob")[1]
			retake.Text = "retake"
			outcome, err := svc.Synthesize(ctx, &SynthesisRequest{
				PodcastID: "p1", Segments: []podcast.Segment{retake}, VoiceMap: voices, BaseStamp: 2000,
			})
			So(err, ShouldBeNil)
			So(outcome.Success, ShouldBeTrue)

			// 不再单独调用 BuildTimeline
			artifact, err = svc.Merge(ctx, "p1", config.StrategyMemory)
			So(err, ShouldBeNil)
			So(artifact.Segments, ShouldEqual, 3)
			So(artifact.Duration, ShouldAlmostEqual, 3.5, 0.001)

			statuses, err := svc.SegmentStatuses(ctx, "p1")
			So(err, ShouldBeNil)
			So(len(statuses), ShouldEqual, 3)
			So(statuses[1].AudioURL, ShouldEndWith, "Bob_2001.wav")
		})

		Convey("配置了 AudioTool 时默认使用 subprocess", func() {
			withTool := newTestService(env, &fakeAudioTool{})
			_, err := withTool.Synthesize(ctx, &SynthesisRequest{
				PodcastID: "p1", Segments: segments(3, "Alice", "Bob"), VoiceMap: voices,
			})
			So(err, ShouldBeNil)
			_, err = withTool.BuildTimeline(ctx, "p1")
			So(err, ShouldBeNil)

			artifact, err := withTool.Merge(ctx, "p1", "")
			So(err, ShouldBeNil)
			So(artifact.Strategy, ShouldEqual, config.StrategySubprocess)
		})

		Convey("没有段落时合并返回 ErrEmptyTimeline", func() {
			_, err := svc.Merge(ctx, "nothing", config.StrategyMemory)
			So(errors.Is(err, ErrEmptyTimeline), ShouldBeTrue)
		})

		Convey("未知的合并策略", func() {
			_, err := svc.Merge(ctx, "p1", "sox")
			So(errors.Is(err, ErrUnknownStrategy), ShouldBeTrue)

			_, err = svc.Merge(ctx, "p1", config.StrategySubprocess)
			So(errors.Is(err, ErrUnknownStrategy), ShouldBeTrue)
		})

		Convey("时间线不存在时查询段落状态", func() {
			_, err := svc.SegmentStatuses(ctx, "p9")
			So(errors.Is(err, ErrTimelineNotFound), ShouldBeTrue)
		})

		Convey("列出音色", func() {
			list, err := svc.ListVoices(ctx, "", "en")
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].LanguageCodes, ShouldResemble, []string{"en"})
		})

		Convey("provider 不支持列出音色", func() {
			plain := newFakeProvider("plain", withDurations(nil))
			env2 := newTestEnv(t, plain)
			_, err := newTestService(env2, nil).ListVoices(ctx, "plain", "")
			So(errors.Is(err, ErrVoicesUnsupported), ShouldBeTrue)
		})
	})
}
