// Package ics converts events to and from iCalendar.
package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"calstore/internal/models"

	"github.com/emersion/go-ical"
)

const (
	productID = "-//calstore//EN"
	mailto    = "mailto:"
	roleOpt   = "OPT-PARTICIPANT"
)

// ErrEmpty is returned when there is nothing to encode.
var ErrEmpty = errors.New("no events to encode")

// Encode writes events as one VCALENDAR.
func Encode(w io.Writer, events []models.Event) error {
	if len(events) == 0 {
		return ErrEmpty
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	stamp := time.Now().UTC()
	for _, e := range events {
		cal.Children = append(cal.Children, toICal(e, stamp))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func toICal(e models.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, e.ID)
	ve.Props.SetText(ical.PropSummary, e.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())

	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != "" {
		ve.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.ExternalLink != "" {
		p := ical.NewProp(ical.PropURL)
		p.Value = e.ExternalLink
		ve.Props.Set(p)
	}
	for _, a := range e.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = mailto + a.Email
		if a.DisplayName != "" {
			p.Params.Set(ical.ParamCommonName, a.DisplayName)
		}
		if a.Optional {
			p.Params.Set(ical.ParamRole, roleOpt)
		}
		ve.Props.Add(p)
	}
	return ve
}

// Decode reads every VEVENT from r. The UID is not carried over; events are
// imported as new.
func Decode(r io.Reader) ([]models.EventInput, error) {
	dec := ical.NewDecoder(r)
	var out []models.EventInput
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}
		for _, ev := range cal.Events() {
			in, err := fromICal(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, in)
		}
	}
	return out, nil
}

func fromICal(ev ical.Event) (models.EventInput, error) {
	var in models.EventInput
	var err error

	if in.Title, err = ev.Props.Text(ical.PropSummary); err != nil {
		return in, fmt.Errorf("failed to read summary: %w", err)
	}
	if in.Start, err = ev.DateTimeStart(time.UTC); err != nil {
		return in, fmt.Errorf("failed to read start of %q: %w", in.Title, err)
	}
	if in.End, err = ev.DateTimeEnd(time.UTC); err != nil {
		return in, fmt.Errorf("failed to read end of %q: %w", in.Title, err)
	}
	if in.Description, err = ev.Props.Text(ical.PropDescription); err != nil {
		return in, fmt.Errorf("failed to read description of %q: %w", in.Title, err)
	}
	if in.Location, err = ev.Props.Text(ical.PropLocation); err != nil {
		return in, fmt.Errorf("failed to read location of %q: %w", in.Title, err)
	}
	if p := ev.Props.Get(ical.PropURL); p != nil {
		in.ExternalLink = p.Value
	}
	for _, p := range ev.Props[ical.PropAttendee] {
		email := p.Value
		if len(email) >= len(mailto) && strings.EqualFold(email[:len(mailto)], mailto) {
			email = email[len(mailto):]
		}
		in.Attendees = append(in.Attendees, models.Attendee{
			Email:       email,
			DisplayName: p.Params.Get(ical.ParamCommonName),
			Optional:    strings.EqualFold(p.Params.Get(ical.ParamRole), roleOpt),
		})
	}
	return in, nil
}
