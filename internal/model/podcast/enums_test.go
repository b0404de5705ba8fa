package podcast

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTaskStatusTransition(t *testing.T) {
	Convey("任务状态机", t, func() {
		So(TaskStatusPending.CanTransition(TaskStatusProcessing), ShouldBeTrue)
		So(TaskStatusPending.CanTransition(TaskStatusFailed), ShouldBeTrue)
		So(TaskStatusPending.CanTransition(TaskStatusCompleted), ShouldBeFalse)

		So(TaskStatusProcessing.CanTransition(TaskStatusProcessing), ShouldBeTrue)
		So(TaskStatusProcessing.CanTransition(TaskStatusCompleted), ShouldBeTrue)
		So(TaskStatusProcessing.CanTransition(TaskStatusFailed), ShouldBeTrue)
		So(TaskStatusProcessing.CanTransition(TaskStatusPending), ShouldBeFalse)

		for _, terminal := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed} {
			So(terminal.IsTerminal(), ShouldBeTrue)
			for _, to := range []TaskStatus{TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed} {
				So(terminal.CanTransition(to), ShouldBeFalse)
			}
		}
	})
}

func TestSegmentValidate(t *testing.T) {
	Convey("段落校验", t, func() {
		So((&Segment{Index: 0, Text: "hi"}).Validate(), ShouldBeNil)
		So((&Segment{Index: -1, Text: "hi"}).Validate(), ShouldNotBeNil)
		So((&Segment{Index: 1}).Validate(), ShouldNotBeNil)
	})
}
