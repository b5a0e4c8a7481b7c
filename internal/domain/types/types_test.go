package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/wpmrank/internal/domain/model"
	types "github.com/okian/wpmrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRoundWPM(t *testing.T) {
	Convey("Given fractional wpm values", t, func() {
		So(*types.RoundWPM(99.5), ShouldEqual, 100)
		So(*types.RoundWPM(99.49), ShouldEqual, 99)
		So(*types.RoundWPM(0), ShouldEqual, 0)
	})
}

func TestNewRankResponse(t *testing.T) {
	Convey("Given a rank response", t, func() {
		Convey("When there is no one above", func() {
			resp := types.NewRankResponse(1, nil)
			raw, err := json.Marshal(resp)
			So(err, ShouldBeNil)

			Convey("Then the targets encode as null", func() {
				So(string(raw), ShouldEqual, `{"rank":1,"wpmToBeat":null,"wpmToBeatRaw":null}`)
			})
		})

		Convey("When a neighbor exists", func() {
			resp := types.NewRankResponse(3, &model.BestScore{Username: "b", WPM: 100.4, RawWPM: 104.6})

			Convey("Then its speeds are rounded", func() {
				So(*resp.WPMToBeat, ShouldEqual, 100)
				So(*resp.WPMToBeatRaw, ShouldEqual, 105)
				So(resp.Rank, ShouldEqual, 3)
			})
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given standing rows", t, func() {
		Convey("When there are none", func() {
			raw, err := json.Marshal(types.Leaderboard(nil))
			So(err, ShouldBeNil)
			So(string(raw), ShouldEqual, "[]")
		})

		Convey("When a row has a fractional wpm", func() {
			ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			out := types.Leaderboard([]model.BestScore{{Username: "alice", WPM: 91.37, RawWPM: 95, Timestamp: ts}})

			Convey("Then full precision is kept", func() {
				So(out, ShouldHaveLength, 1)
				So(out[0].WPM, ShouldEqual, 91.37)
				So(out[0].Timestamp, ShouldEqual, ts)
			})
		})
	})
}

func TestSubmitRequestDecoding(t *testing.T) {
	Convey("Given a submission body with a zero wpm", t, func() {
		var req types.SubmitRequest
		err := json.Unmarshal([]byte(`{"username":"bob","wpm":0,"rawWpm":0,"accuracy":100}`), &req)

		Convey("Then zero is distinguishable from missing", func() {
			So(err, ShouldBeNil)
			So(req.WPM, ShouldNotBeNil)
			So(*req.WPM, ShouldEqual, 0)
			So(req.Keystrokes, ShouldBeNil)
		})
	})
}

func TestFromEvent(t *testing.T) {
	Convey("Given a stored event with keystrokes", t, func() {
		e := model.ScoreEvent{ID: 7, Username: "carol", WPM: 80, RawWPM: 82, Accuracy: 97.5,
			Keystrokes: []model.Keystroke{{Key: "a", Timestamp: 1}}}
		rec := types.FromEvent(e)
		raw, _ := json.Marshal(rec)

		Convey("Then the record omits the payload", func() {
			So(rec.ID, ShouldEqual, 7)
			So(string(raw), ShouldNotContainSubstring, "keystrokes")
		})
	})
}
