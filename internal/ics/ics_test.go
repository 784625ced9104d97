package ics_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"calstore/internal/ics"
	"calstore/internal/models"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEncodeDecode(t *testing.T) {
	Convey("Given an event with every optional field", t, func() {
		start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
		e := models.Event{
			ID:           "evt-1",
			Title:        "Team Meeting",
			Description:  "Weekly team sync",
			Start:        start,
			End:          start.Add(time.Hour),
			Location:     "Conference Room A",
			ExternalLink: "https://meet.google.com/abc-defg-hij",
			Attendees: []models.Attendee{
				{Email: "john@example.com", DisplayName: "John Doe"},
				{Email: "jane@example.com", Optional: true},
			},
		}

		var buf bytes.Buffer
		So(ics.Encode(&buf, []models.Event{e}), ShouldBeNil)
		out := buf.String()

		Convey("The feed is a VCALENDAR with one VEVENT", func() {
			So(out, ShouldStartWith, "BEGIN:VCALENDAR")
			So(strings.Count(out, "BEGIN:VEVENT"), ShouldEqual, 1)
			So(out, ShouldContainSubstring, "UID:evt-1")
			So(out, ShouldContainSubstring, "DTSTART:20240102T100000Z")
			So(out, ShouldContainSubstring, "mailto:john@example.com")
		})

		Convey("Decoding yields the same fields without the id", func() {
			inputs, err := ics.Decode(strings.NewReader(out))
			So(err, ShouldBeNil)
			So(inputs, ShouldHaveLength, 1)

			in := inputs[0]
			So(in.Title, ShouldEqual, e.Title)
			So(in.Description, ShouldEqual, e.Description)
			So(in.Location, ShouldEqual, e.Location)
			So(in.ExternalLink, ShouldEqual, e.ExternalLink)
			So(in.Start.Equal(e.Start), ShouldBeTrue)
			So(in.End.Equal(e.End), ShouldBeTrue)
			So(in.Attendees, ShouldResemble, e.Attendees)
		})
	})

	Convey("Encoding nothing is reported", t, func() {
		var buf bytes.Buffer
		err := ics.Encode(&buf, nil)
		So(errors.Is(err, ics.ErrEmpty), ShouldBeTrue)
		So(buf.Len(), ShouldEqual, 0)
	})

	Convey("Garbage input fails to decode", t, func() {
		_, err := ics.Decode(strings.NewReader("BEGIN:VCALENDAR\r\nthis is not ical\r\n"))
		So(err, ShouldNotBeNil)
	})

	Convey("Empty input decodes to nothing", t, func() {
		inputs, err := ics.Decode(strings.NewReader(""))
		So(err, ShouldBeNil)
		So(inputs, ShouldBeEmpty)
	})
}
