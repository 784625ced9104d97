package models_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"calstore/internal/models"

	. "github.com/smartystreets/goconvey/convey"
)

func sampleEvent() models.Event {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return models.Event{
		ID:          "evt-1",
		Title:       "Standup",
		Description: "Daily sync",
		Start:       start,
		End:         start.Add(15 * time.Minute),
		Location:    "Room 4",
		Attendees: []models.Attendee{
			{Email: "john@example.com", DisplayName: "John Doe"},
			{Email: "jane@example.com", Optional: true},
		},
	}
}

func TestEventInputValidate(t *testing.T) {
	Convey("Given an event input", t, func() {
		in := models.EventInput{
			Title: "Standup",
			Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC),
		}

		Convey("A complete input is valid", func() {
			So(in.Validate(), ShouldBeNil)
		})

		Convey("A blank title is rejected", func() {
			in.Title = "   "
			err := in.Validate()
			So(errors.Is(err, models.ErrValidation), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "title")
		})

		Convey("A missing start is rejected", func() {
			in.Start = time.Time{}
			So(errors.Is(in.Validate(), models.ErrValidation), ShouldBeTrue)
		})

		Convey("An end before start is accepted", func() {
			in.End = in.Start.Add(-time.Hour)
			So(in.Validate(), ShouldBeNil)
		})

		Convey("An attendee without email is rejected", func() {
			in.Attendees = []models.Attendee{{Email: "a@example.com"}, {DisplayName: "Nobody"}}
			err := in.Validate()
			So(errors.Is(err, models.ErrValidation), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "attendee 1")
		})

		Convey("Duplicate attendee emails are accepted", func() {
			in.Attendees = []models.Attendee{{Email: "a@example.com"}, {Email: "a@example.com"}}
			So(in.Validate(), ShouldBeNil)
		})
	})
}

func TestEventPatch(t *testing.T) {
	Convey("Given an existing event", t, func() {
		e := sampleEvent()

		Convey("Applying a title patch changes only the title", func() {
			title := "New"
			got := models.EventPatch{Title: &title}.Apply(e)
			want := e.Clone()
			want.Title = "New"
			So(got, ShouldResemble, want)
			So(e.Title, ShouldEqual, "Standup")
		})

		Convey("Applying an attendee patch does not alias the patch slice", func() {
			list := []models.Attendee{{Email: "x@example.com"}}
			got := models.EventPatch{Attendees: &list}.Apply(e)
			list[0].Email = "changed@example.com"
			So(got.Attendees, ShouldHaveLength, 1)
			So(got.Attendees[0].Email, ShouldEqual, "x@example.com")
		})

		Convey("An empty patch is detected", func() {
			So(models.EventPatch{}.IsEmpty(), ShouldBeTrue)
			So(models.EventPatch{}.Apply(e), ShouldResemble, e)
		})

		Convey("A patch clearing the title is invalid", func() {
			empty := ""
			So(errors.Is(models.EventPatch{Title: &empty}.Validate(), models.ErrValidation), ShouldBeTrue)
		})

		Convey("Only present fields are serialized", func() {
			loc := "Room 9"
			raw, err := json.Marshal(models.EventPatch{Location: &loc})
			So(err, ShouldBeNil)
			So(string(raw), ShouldEqual, `{"location":"Room 9"}`)
		})
	})
}

func TestCloneEvents(t *testing.T) {
	Convey("Cloning a snapshot yields independent attendee slices", t, func() {
		src := []models.Event{sampleEvent()}
		dst := models.CloneEvents(src)
		dst[0].Attendees[0].Email = "other@example.com"
		So(src[0].Attendees[0].Email, ShouldEqual, "john@example.com")
	})

	Convey("Cloning nil yields an empty slice that encodes as []", t, func() {
		raw, err := json.Marshal(models.CloneEvents(nil))
		So(err, ShouldBeNil)
		So(string(raw), ShouldEqual, "[]")
	})

	Convey("Input converts to an event with the given id", t, func() {
		in := models.EventInput{Title: "Standup", CreateExternalLink: true}
		e := in.ToEvent("abc")
		So(e.ID, ShouldEqual, "abc")
		So(e.Title, ShouldEqual, "Standup")
	})
}
