package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/waypoint/internal/adapters/docstore"
	"github.com/okian/waypoint/internal/adapters/http/api"
	service "github.com/okian/waypoint/internal/app"
)

type reply struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	mux *http.ServeMux
	svc *service.Service
}

func newTestServer(t *testing.T) *testServer {
	docs, err := docstore.NewSQLiteStore(context.Background(), "")
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })

	svc := service.New(docs, service.WithEventTypes("parkour"), service.WithDispatcherCount(1))
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)
	return &testServer{mux: mux, svc: svc}
}

func (s *testServer) do(method, path, body string) (int, reply) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var out reply
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

// course creates race1 with Start 0, Checkpoint 10 and End 20.
func (s *testServer) course() {
	code, _ := s.do(http.MethodPost, "/events/parkour/variants", `{"name":"race1","start":[-10,0,-10],"end":[100,10,10]}`)
	So(code, ShouldEqual, http.StatusOK)
	for _, body := range []string{
		`{"index":0,"type":"START","start":[0,0,0],"end":[1,2,1]}`,
		`{"index":10,"type":"CHECKPOINT","start":[20,0,0],"end":[21,2,1]}`,
		`{"index":20,"type":"END","start":[40,0,0],"end":[41,2,1]}`,
	} {
		code, _ := s.do(http.MethodPost, "/events/parkour/variants/race1/checkpoints", body)
		So(code, ShouldEqual, http.StatusOK)
	}
}

func tickBody(tick int64, player uuid.UUID, x float64) string {
	return fmt.Sprintf(`{"tick":%d,"players":[{"id":%q,"position":{"x":%g,"y":0.5,"z":0.5}}]}`, tick, player, x)
}

func TestVariantRoutes(t *testing.T) {
	Convey("Given the API over a fresh service", t, func() {
		s := newTestServer(t)
		s.course()

		Convey("When listing variants", func() {
			code, out := s.do(http.MethodGet, "/events/parkour/variants", "")

			Convey("Then race1 is returned in its persisted shape", func() {
				So(code, ShouldEqual, http.StatusOK)
				var vs []map[string]any
				So(json.Unmarshal(out.Data, &vs), ShouldBeNil)
				So(len(vs), ShouldEqual, 1)
				So(vs[0]["variant"], ShouldEqual, "race1")
				So(vs[0]["win_condition"], ShouldEqual, "FIRST_TO_FINISH")
				So(len(vs[0]["checkpoints"].([]any)), ShouldEqual, 3)
			})
		})

		Convey("Then error statuses follow the error kind", func() {
			cases := []struct {
				method, path, body string
				status             int
				code               string
			}{
				{http.MethodPost, "/events/parkour/variants", `{"name":"race1","start":[0,0,0],"end":[1,1,1]}`, http.StatusConflict, "conflict"},
				{http.MethodPost, "/events/parkour/variants", `{"name":"race2","start":[0,0],"end":[1,1,1]}`, http.StatusBadRequest, "bad_request"},
				{http.MethodPost, "/events/parkour/variants", `{"name":"race2"}`, http.StatusBadRequest, "bad_request"},
				{http.MethodPost, "/events/bedwars/variants", `{"name":"race2","start":[0,0,0],"end":[1,1,1]}`, http.StatusBadRequest, "bad_request"},
				{http.MethodDelete, "/events/parkour/variants/race9", "", http.StatusNotFound, "not_found"},
				{http.MethodPatch, "/events/parkour/variants/race1", `{"field":"colour","value":"red"}`, http.StatusBadRequest, "bad_request"},
				{http.MethodPost, "/events/parkour/variants/race1/checkpoints", `{"index":10,"type":"CHECKPOINT","start":[0,0,0],"end":[1,1,1]}`, http.StatusConflict, "conflict"},
				{http.MethodPost, "/events/parkour/variants/race1/checkpoints", `{"index":5,"type":"LOOP","start":[0,0,0],"end":[1,1,1]}`, http.StatusBadRequest, "bad_request"},
				{http.MethodDelete, "/events/parkour/variants/race1/checkpoints/7", "", http.StatusNotFound, "not_found"},
				{http.MethodDelete, "/events/parkour/variants/race1/checkpoints/seven", "", http.StatusBadRequest, "bad_request"},
			}
			for _, c := range cases {
				code, out := s.do(c.method, c.path, c.body)
				So(code, ShouldEqual, c.status)
				So(out.OK, ShouldBeFalse)
				So(out.Code, ShouldEqual, c.code)
			}
		})

		Convey("When patching the variant and a checkpoint", func() {
			code, out := s.do(http.MethodPatch, "/events/parkour/variants/race1", `{"field":"fail_message","value":"Wrong way"}`)
			So(code, ShouldEqual, http.StatusOK)
			So(out.Message, ShouldEqual, "Modified parkour config: race1")

			code, out = s.do(http.MethodPatch, "/events/parkour/variants/race1/checkpoints/10", `{"field":"sound","value":"block.note_block.bell"}`)
			So(code, ShouldEqual, http.StatusOK)

			Convey("Then the patched values are returned", func() {
				var cp map[string]any
				So(json.Unmarshal(out.Data, &cp), ShouldBeNil)
				So(cp["sound"], ShouldEqual, "block.note_block.bell")
				So(cp["index"], ShouldEqual, float64(10))
			})
		})

		Convey("When a checkpoint is added and patched with lower-case spellings", func() {
			code, _ := s.do(http.MethodPost, "/events/parkour/variants/race1/checkpoints", `{"index":15,"type":"checkpoint","start":[30,0,0],"end":[31,2,1]}`)
			So(code, ShouldEqual, http.StatusOK)
			code, out := s.do(http.MethodPatch, "/events/parkour/variants/race1/checkpoints/15", `{"field":"message","value":"Halfway there"}`)
			So(code, ShouldEqual, http.StatusOK)

			Convey("Then both are accepted", func() {
				var cp map[string]any
				So(json.Unmarshal(out.Data, &cp), ShouldBeNil)
				So(cp["type"], ShouldEqual, "CHECKPOINT")
				So(cp["success_message"], ShouldEqual, "Halfway there")
			})
		})

		Convey("When removing a checkpoint and the variant", func() {
			code, _ := s.do(http.MethodDelete, "/events/parkour/variants/race1/checkpoints/10", "")
			So(code, ShouldEqual, http.StatusOK)
			code, _ = s.do(http.MethodDelete, "/events/parkour/variants/race1", "")
			So(code, ShouldEqual, http.StatusOK)

			Convey("Then no variant is left", func() {
				_, out := s.do(http.MethodGet, "/events/parkour/variants", "")
				So(string(out.Data), ShouldEqual, "[]")
			})
		})
	})
}

func TestPlayerRoutes(t *testing.T) {
	Convey("Given race1 and one player", t, func() {
		s := newTestServer(t)
		s.course()
		player := uuid.New()
		base := "/events/parkour/variants/race1/players/" + player.String()

		Convey("When the player joins twice", func() {
			code, first := s.do(http.MethodPost, base+"/join", "")
			_, second := s.do(http.MethodPost, base+"/join", "")

			Convey("Then the second join is a successful no-op response", func() {
				So(code, ShouldEqual, http.StatusOK)
				So(first.OK, ShouldBeTrue)
				So(first.Message, ShouldEqual, "Joined parkour event: race1")
				So(second.OK, ShouldBeFalse)
			})
		})

		Convey("When the player id is not a uuid", func() {
			code, out := s.do(http.MethodPost, "/events/parkour/variants/race1/players/steve/join", "")
			So(code, ShouldEqual, http.StatusBadRequest)
			So(out.Code, ShouldEqual, "bad_request")
		})

		Convey("When asking for status and respawn before playing", func() {
			code, _ := s.do(http.MethodGet, base, "")
			So(code, ShouldEqual, http.StatusNotFound)
			code, _ = s.do(http.MethodGet, base+"/respawn", "")
			So(code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the player runs the course through ticks", func() {
			for i, x := range []float64{0.5, 20.5, 40.5} {
				code, out := s.do(http.MethodPost, "/events/parkour/tick", tickBody(int64(i*100), player, x))
				So(code, ShouldEqual, http.StatusOK)
				So(out.OK, ShouldBeTrue)
			}

			Convey("Then status, respawn and rank reflect the finish", func() {
				code, out := s.do(http.MethodGet, base, "")
				So(code, ShouldEqual, http.StatusOK)
				So(out.Message, ShouldEqual, "Checkpoints: 20, Finished: true, Start: 0, Finish: 200")
				var rec map[string]any
				So(json.Unmarshal(out.Data, &rec), ShouldBeNil)
				So(rec["isFinished"], ShouldEqual, true)
				So(rec["finishTicks"], ShouldEqual, float64(200))

				_, out = s.do(http.MethodGet, base+"/respawn", "")
				So(string(out.Data), ShouldEqual, "[40,0,0]")

				code, out = s.do(http.MethodGet, "/events/parkour/variants/race1/rank?limit=5", "")
				So(code, ShouldEqual, http.StatusOK)
				So(out.Message, ShouldEqual, fmt.Sprintf("Position 1, in 10 seconds, for player %s", player))
			})

			Convey("Then a reset removes the player from the ranking", func() {
				code, _ := s.do(http.MethodDelete, "/events/parkour/players/"+player.String()+"?variant=race1", "")
				So(code, ShouldEqual, http.StatusOK)

				_, out := s.do(http.MethodGet, "/events/parkour/variants/race1/rank", "")
				So(out.Message, ShouldEqual, "No ranking yet for race1")
			})
		})

		Convey("When the rank limit is not a number", func() {
			code, _ := s.do(http.MethodGet, "/events/parkour/variants/race1/rank?limit=all", "")
			So(code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestTickRoute(t *testing.T) {
	Convey("Given race1", t, func() {
		s := newTestServer(t)
		s.course()

		Convey("When a tick places a player on the start", func() {
			code, out := s.do(http.MethodPost, "/events/parkour/tick", tickBody(7, uuid.New(), 0.5))

			Convey("Then the effects are reported", func() {
				So(code, ShouldEqual, http.StatusOK)
				var report service.TickReport
				So(json.Unmarshal(out.Data, &report), ShouldBeNil)
				So(report.Tick, ShouldEqual, int64(7))
				So(report.Players, ShouldEqual, 1)
				So(len(report.Effects), ShouldEqual, 4)
			})
		})

		Convey("Then malformed ticks are rejected", func() {
			code, _ := s.do(http.MethodPost, "/events/parkour/tick", `{"players":[]}`)
			So(code, ShouldEqual, http.StatusBadRequest)
			code, _ = s.do(http.MethodPost, "/events/parkour/tick", `{"tick":1,"players":[{"id":"x"}]}`)
			So(code, ShouldEqual, http.StatusBadRequest)
			code, _ = s.do(http.MethodPost, "/events/bedwars/tick", `{"tick":1}`)
			So(code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given the API", t, func() {
		s := newTestServer(t)

		Convey("When scraping /healthz", func() {
			_, _ = s.do(http.MethodGet, "/stats", "")
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			s.mux.ServeHTTP(rec, req)

			Convey("Then Prometheus text is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "waypoint_engine_http_requests_total")
			})
		})

		Convey("When reading /stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()
			s.mux.ServeHTTP(rec, req)

			Convey("Then the service statistics are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var stats map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
				So(stats["started"], ShouldEqual, false)
				So(stats["event_types"], ShouldResemble, []any{"parkour"})
			})
		})

		Convey("When using a method the route does not accept", func() {
			req := httptest.NewRequest(http.MethodPut, "/events/parkour/tick", nil)
			rec := httptest.NewRecorder()
			s.mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}
