package alert_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tempoguard/internal/adapters/alert"
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeNotifier struct {
	mu   sync.Mutex
	got  []model.EscalationEvent
	fail bool
	wait chan struct{}
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Send(_ context.Context, ev model.EscalationEvent) error {
	if f.wait != nil {
		<-f.wait
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev)
	if f.fail {
		return errors.New("unreachable")
	}
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func escalation(level int, flagged bool) model.EscalationEvent {
	return model.EscalationEvent{
		ParticipantID: "p1", CheckID: "interval", PreviousLevel: level - 1, NewLevel: level,
		Flagged: flagged, Score: 14.5, Evidence: "cv=0.01", NodeID: "node-a",
		At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func eventually(fn func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestDispatcher(t *testing.T) {
	Convey("Given a dispatcher with two notifiers", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ok, failing := &fakeNotifier{}, &fakeNotifier{fail: true}
		d := alert.NewDispatcher(alert.WithNotifiers(failing, ok, alert.NewLogNotifier()))
		go func() { _ = d.Serve(ctx) }()

		Convey("When alerts are queued", func() {
			d.Notify(ctx, escalation(1, false))
			d.Notify(ctx, escalation(3, true))

			Convey("Then every notifier receives them despite failures", func() {
				So(eventually(func() bool { return ok.count() == 2 }), ShouldBeTrue)
				So(failing.count(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a dispatcher with a stuck notifier and a queue of one", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		stuck := &fakeNotifier{wait: make(chan struct{})}
		d := alert.NewDispatcher(alert.WithQueueSize(1), alert.WithNotifiers(stuck))
		go func() { _ = d.Serve(ctx) }()

		Convey("Notify never blocks", func() {
			done := make(chan struct{})
			go func() {
				for i := 0; i < 10; i++ {
					d.Notify(ctx, escalation(1, false))
				}
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				So("notify blocked", ShouldBeEmpty)
			}
			close(stuck.wait)
			cancel()
		})
	})
}

func TestWebhookNotifier(t *testing.T) {
	Convey("Given a webhook endpoint", t, func() {
		var (
			mu     sync.Mutex
			bodies [][]byte
			status atomic.Int32
		)
		status.Store(http.StatusNoContent)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, b)
			mu.Unlock()
			w.WriteHeader(int(status.Load()))
		}))
		defer srv.Close()

		Convey("The json format posts the escalation event", func() {
			w, err := alert.NewWebhookNotifier(srv.URL)
			So(err, ShouldBeNil)
			So(w.Send(context.Background(), escalation(2, false)), ShouldBeNil)

			var got model.EscalationEvent
			So(json.Unmarshal(bodies[0], &got), ShouldBeNil)
			So(got.ParticipantID, ShouldEqual, "p1")
			So(got.NewLevel, ShouldEqual, 2)
		})

		Convey("The discord format posts an embed", func() {
			w, err := alert.NewWebhookNotifier(srv.URL, alert.WithFormat(alert.FormatDiscord), alert.WithUsername("Guard"))
			So(err, ShouldBeNil)
			So(w.Send(context.Background(), escalation(3, true)), ShouldBeNil)

			var got struct {
				Username string `json:"username"`
				Embeds   []struct {
					Title  string `json:"title"`
					Color  int    `json:"color"`
					Fields []struct {
						Name  string `json:"name"`
						Value string `json:"value"`
					} `json:"fields"`
					Timestamp string `json:"timestamp"`
				} `json:"embeds"`
			}
			So(json.Unmarshal(bodies[0], &got), ShouldBeNil)
			So(got.Username, ShouldEqual, "Guard")
			So(got.Embeds, ShouldHaveLength, 1)
			So(got.Embeds[0].Title, ShouldEqual, "Guard Flagged")
			So(got.Embeds[0].Color, ShouldEqual, 0xd60010)
			So(got.Embeds[0].Fields[0].Value, ShouldEqual, "p1")
			So(got.Embeds[0].Timestamp, ShouldEqual, "2026-01-02T03:04:05Z")
		})

		Convey("An error status is reported", func() {
			status.Store(http.StatusInternalServerError)
			w, err := alert.NewWebhookNotifier(srv.URL)
			So(err, ShouldBeNil)
			err = w.Send(context.Background(), escalation(1, false))
			So(errors.Is(err, alert.ErrWebhookStatus), ShouldBeTrue)
		})

		Convey("A canceled context stops waiting for the rate limiter", func() {
			w, err := alert.NewWebhookNotifier(srv.URL, alert.WithRateLimit(0.001, 1))
			So(err, ShouldBeNil)
			So(w.Send(context.Background(), escalation(1, false)), ShouldBeNil)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			So(w.Send(ctx, escalation(1, false)), ShouldNotBeNil)
			So(len(bodies), ShouldEqual, 1)
		})

		Convey("An unknown format is rejected", func() {
			_, err := alert.NewWebhookNotifier(srv.URL, alert.WithFormat("xml"))
			So(errors.Is(err, alert.ErrUnknownFormat), ShouldBeTrue)
		})
	})
}
