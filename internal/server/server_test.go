package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"calstore/internal/google"
	"calstore/internal/metrics"
	"calstore/internal/models"
	"calstore/internal/server"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newTestServer(opts ...server.Option) (*httptest.Server, *server.Repository) {
	repo := server.NewRepository()
	srv := server.New(repo, opts...)
	return httptest.NewServer(srv.Handler()), repo
}

func doJSON(ts *httptest.Server, method, path string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		buf, _ := json.Marshal(body)
		reader = bytes.NewReader(buf)
	}
	req, _ := http.NewRequest(method, ts.URL+path, reader)
	resp, err := ts.Client().Do(req)
	So(err, ShouldBeNil)
	return resp
}

func decode(resp *http.Response, v any) {
	defer resp.Body.Close()
	So(json.NewDecoder(resp.Body).Decode(v), ShouldBeNil)
}

func input(title string) models.EventInput {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return models.EventInput{Title: title, Start: start, End: start.Add(30 * time.Minute)}
}

func TestEventRoutes(t *testing.T) {
	Convey("Given a connected service with the demo meeting", t, func() {
		ts, repo := newTestServer()
		defer ts.Close()
		seeded := repo.Seed(time.Now())

		Convey("GET lists the seeded event", func() {
			resp := doJSON(ts, http.MethodGet, "/api/google/events", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out struct {
				Events []models.Event `json:"events"`
			}
			decode(resp, &out)
			So(out.Events, ShouldHaveLength, 1)
			So(out.Events[0].ID, ShouldEqual, seeded.ID)
			So(out.Events[0].Title, ShouldEqual, "Team Meeting")
			So(out.Events[0].Attendees, ShouldHaveLength, 2)
		})

		Convey("POST assigns an id and can generate a meeting link", func() {
			in := input("Standup")
			in.CreateExternalLink = true
			resp := doJSON(ts, http.MethodPost, "/api/google/events", in)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out struct {
				Event models.Event `json:"event"`
			}
			decode(resp, &out)
			So(out.Event.ID, ShouldNotBeBlank)
			So(out.Event.ID, ShouldNotEqual, seeded.ID)
			So(out.Event.ExternalLink, ShouldStartWith, "https://meet.google.com/")
			So(len(strings.TrimPrefix(out.Event.ExternalLink, "https://meet.google.com/")), ShouldEqual, 12)
			So(repo.List(), ShouldHaveLength, 2)
		})

		Convey("POST keeps a supplied link when none is requested", func() {
			in := input("Review")
			in.ExternalLink = "https://example.com/room"
			var out struct {
				Event models.Event `json:"event"`
			}
			decode(doJSON(ts, http.MethodPost, "/api/google/events", in), &out)
			So(out.Event.ExternalLink, ShouldEqual, "https://example.com/room")
		})

		Convey("POST rejects an invalid event", func() {
			resp := doJSON(ts, http.MethodPost, "/api/google/events", input("  "))
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			var out apiError
			decode(resp, &out)
			So(out.Code, ShouldEqual, "invalid_event")
		})

		Convey("POST rejects malformed JSON", func() {
			req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/google/events", strings.NewReader("{"))
			resp, err := ts.Client().Do(req)
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			var out apiError
			decode(resp, &out)
			So(out.Code, ShouldEqual, "invalid_json")
		})

		Convey("PATCH updates only the given fields", func() {
			title := "Team Sync"
			resp := doJSON(ts, http.MethodPatch, "/api/google/events/"+seeded.ID, models.EventPatch{Title: &title})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out struct {
				Event models.Event `json:"event"`
			}
			decode(resp, &out)
			So(out.Event.Title, ShouldEqual, "Team Sync")
			So(out.Event.Location, ShouldEqual, "Conference Room A")
		})

		Convey("PATCH and DELETE of an unknown id answer 404", func() {
			title := "x"
			resp := doJSON(ts, http.MethodPatch, "/api/google/events/missing", models.EventPatch{Title: &title})
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			var out apiError
			decode(resp, &out)
			So(out.Code, ShouldEqual, "not_found")

			resp = doJSON(ts, http.MethodDelete, "/api/google/events/missing", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			resp.Body.Close()
		})

		Convey("DELETE removes the event", func() {
			resp := doJSON(ts, http.MethodDelete, "/api/google/events/"+seeded.ID, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var out struct {
				Success bool `json:"success"`
			}
			decode(resp, &out)
			So(out.Success, ShouldBeTrue)
			So(repo.List(), ShouldBeEmpty)
		})

		Convey("The iCalendar feed carries the events", func() {
			resp := doJSON(ts, http.MethodGet, "/api/google/events.ics", nil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldStartWith, "text/calendar")
			body, _ := io.ReadAll(resp.Body)
			So(string(body), ShouldContainSubstring, "UID:"+seeded.ID)
		})

		Convey("The feed is empty once every event is gone", func() {
			So(repo.Delete(seeded.ID), ShouldBeNil)
			resp := doJSON(ts, http.MethodGet, "/api/google/events.ics", nil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
		})
	})
}

func TestConnection(t *testing.T) {
	Convey("Given a connected service", t, func() {
		ts, repo := newTestServer()
		defer ts.Close()
		repo.Seed(time.Now())

		Convey("Disconnect makes every events route answer 401", func() {
			resp := doJSON(ts, http.MethodPost, "/api/google/disconnect", nil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			for _, path := range []string{"/api/google/events", "/api/google/events.ics"} {
				resp = doJSON(ts, http.MethodGet, path, nil)
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
				var out apiError
				decode(resp, &out)
				So(out.Code, ShouldEqual, "unauthorized")
			}

			Convey("and connect restores them", func() {
				resp := doJSON(ts, http.MethodPost, "/api/google/connect", nil)
				resp.Body.Close()
				resp = doJSON(ts, http.MethodGet, "/api/google/events", nil)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})
	})

	Convey("A service started disconnected refuses events", t, func() {
		ts, _ := newTestServer(server.WithConnected(false))
		defer ts.Close()
		resp := doJSON(ts, http.MethodGet, "/api/google/events", nil)
		resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
	})
}

func TestAuthURL(t *testing.T) {
	Convey("Without an OAuth client the route answers 500", t, func() {
		ts, _ := newTestServer()
		defer ts.Close()
		resp := doJSON(ts, http.MethodGet, "/api/google/oauth/url", nil)
		So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
		var out apiError
		decode(resp, &out)
		So(out.Code, ShouldEqual, "not_configured")
	})

	Convey("With an OAuth client the route returns a consent URL", t, func() {
		o, err := google.NewOAuth("client-1", "secret", "http://localhost:3000/callback")
		So(err, ShouldBeNil)
		ts, _ := newTestServer(server.WithOAuth(o))
		defer ts.Close()

		var out struct {
			URL string `json:"url"`
		}
		decode(doJSON(ts, http.MethodGet, "/api/google/oauth/url", nil), &out)
		So(out.URL, ShouldStartWith, "https://accounts.google.com/")
		So(out.URL, ShouldContainSubstring, "client_id=client-1")
		So(out.URL, ShouldContainSubstring, "access_type=offline")
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given a service with metrics and a tight rate limit", t, func() {
		m := metrics.NewManager()
		ts, _ := newTestServer(server.WithMetrics(m), server.WithRateLimiter(server.NewRateLimiter(1, 2)))
		defer ts.Close()

		Convey("Requests beyond the burst get 429", func() {
			codes := make([]int, 0, 3)
			for range 3 {
				resp := doJSON(ts, http.MethodGet, "/api/google/events", nil)
				resp.Body.Close()
				codes = append(codes, resp.StatusCode)
			}
			So(codes, ShouldResemble, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests})

			n, err := testutil.GatherAndCount(m.Registry(), "calstore_http_rate_limited_total")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("Handled requests are counted and /healthz exposes them", func() {
			resp := doJSON(ts, http.MethodGet, "/api/google/events", nil)
			resp.Body.Close()

			resp = doJSON(ts, http.MethodGet, "/healthz", nil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			body, _ := io.ReadAll(resp.Body)
			So(string(body), ShouldContainSubstring, `calstore_http_requests_total{method="GET",route="events",status_code="200"} 1`)
		})
	})

	Convey("Prune drops idle clients", t, func() {
		rl := server.NewRateLimiter(1, 1)
		So(rl.Allow("a"), ShouldBeTrue)
		So(rl.Allow("a"), ShouldBeFalse)
		So(rl.Prune(time.Hour), ShouldEqual, 0)
		time.Sleep(time.Millisecond)
		So(rl.Prune(0), ShouldEqual, 1)
		So(rl.Allow("a"), ShouldBeTrue)
	})
}
