package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"calstore/internal/localcache"
	"calstore/internal/models"
	"calstore/internal/store"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseAttendee(t *testing.T) {
	Convey("Attendee flags", t, func() {
		So(parseAttendee("john@example.com", false), ShouldResemble,
			models.Attendee{Email: "john@example.com"})
		So(parseAttendee(" jane@example.com : Jane Smith ", true), ShouldResemble,
			models.Attendee{Email: "jane@example.com", DisplayName: "Jane Smith", Optional: true})
	})
}

type unreachable struct{ store.RemoteSource }

func (unreachable) Fetch(context.Context) ([]models.Event, error) {
	return nil, store.ErrUnavailable
}

func TestPrintEvents(t *testing.T) {
	Convey("Given a local store with one event", t, func() {
		ctx := context.Background()
		st := store.New(unreachable{}, store.NewLocalBackend(localcache.NewMemoryCache()))
		defer st.Dispose()
		So(st.Init(ctx), ShouldBeNil)

		start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
		_, err := st.Create(ctx, models.EventInput{Title: "Standup", Start: start, End: start.Add(15 * time.Minute), Location: "Room 1"})
		So(err, ShouldBeNil)

		Convey("The table names the mode and the event", func() {
			var buf bytes.Buffer
			So(printEvents(&buf, st, false), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "# local mode, 1 events")
			So(buf.String(), ShouldContainSubstring, "2024-01-02T10:00:00Z")
			So(buf.String(), ShouldContainSubstring, "Standup")
		})

		Convey("The JSON form carries the mode", func() {
			var buf bytes.Buffer
			So(printEvents(&buf, st, true), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `"mode": "local"`)
			So(buf.String(), ShouldContainSubstring, `"title": "Standup"`)
		})
	})
}

func TestExportFile(t *testing.T) {
	Convey("Given one event", t, func() {
		start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
		events := []models.Event{{ID: "evt-1", Title: "Standup", Start: start, End: start.Add(15 * time.Minute)}}

		Convey("It is written and closed", func() {
			path := filepath.Join(t.TempDir(), "events.ics")
			So(exportFile(path, events), ShouldBeNil)
			raw, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, "UID:evt-1")
		})

		Convey("An unwritable path is reported", func() {
			path := filepath.Join(t.TempDir(), "missing", "events.ics")
			So(exportFile(path, events), ShouldNotBeNil)
		})

		Convey("An encode failure is reported and not taken for success", func() {
			path := filepath.Join(t.TempDir(), "events.ics")
			err := exportFile(path, nil)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to write")
		})
	})
}
