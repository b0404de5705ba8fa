package http

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestResponses(t *testing.T) {
	Convey("统一响应结构", t, func() {
		Convey("成功响应 code 为 0 且总是带 data 字段", func() {
			data, err := json.Marshal(NewSuccessResponse(nil))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"code":0,"message":"success","data":null}`)

			data, err = json.Marshal(NewSuccessResponse(map[string]int{"total": 3}))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"code":0,"message":"success","data":{"total":3}}`)
		})

		Convey("错误响应的 detail 为空时省略", func() {
			data, err := json.Marshal(NewErrorResponse(50000, "Internal Server Error"))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"code":50000,"message":"Internal Server Error"}`)

			data, err = json.Marshal(NewErrorResponse(40001, "Invalid podcast_id", ""))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"code":40001,"message":"Invalid podcast_id"}`)

			resp := NewErrorResponse(40401, "Not found", "task_1")
			So(resp.Detail, ShouldEqual, "task_1")
		})
	})
}
