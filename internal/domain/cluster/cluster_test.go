package cluster_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tempoguard/internal/domain/cluster"
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// bus delivers every published payload to every subscriber.
type bus struct {
	mu      sync.Mutex
	subs    []chan []byte
	fail    error
	publish int
}

func (b *bus) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publish++
	if b.fail != nil {
		return b.fail
	}
	for _, s := range b.subs {
		s <- payload
	}
	return nil
}

func (b *bus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 64)
	b.subs = append(b.subs, ch)
	return ch, nil
}

func (b *bus) Close() error { return nil }

func (b *bus) inject(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s <- payload
	}
}

func (b *bus) published() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publish
}

type applier struct {
	mu  sync.Mutex
	got []model.ClusterVerdict
}

func (a *applier) SubmitVerdict(_ context.Context, v model.ClusterVerdict) error {
	a.mu.Lock()
	a.got = append(a.got, v)
	a.mu.Unlock()
	return nil
}

func (a *applier) received() []model.ClusterVerdict {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.ClusterVerdict(nil), a.got...)
}

type levels []model.ClusterVerdict

func (l levels) Levels() []model.ClusterVerdict { return l }

func verdict(origin string, level int) model.ClusterVerdict {
	return model.ClusterVerdict{
		ID: "v-" + origin, Kind: model.VerdictEscalation, ParticipantID: "p1",
		CheckID: "interval", EscalationLevel: level, OriginNodeID: origin,
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

func TestSynchronizer(t *testing.T) {
	Convey("Given two synchronizers on a shared bus", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := &bus{}
		appA, appB := &applier{}, &applier{}
		a := cluster.New(b, "node-a", appA, levels{verdict("node-a", 2)}, cluster.WithReconcileInterval(0))
		c := cluster.New(b, "node-b", appB, levels{}, cluster.WithReconcileInterval(0))
		go func() { _ = a.Serve(ctx) }()
		go func() { _ = c.Serve(ctx) }()
		So(eventually(func() bool { b.mu.Lock(); defer b.mu.Unlock(); return len(b.subs) == 2 }), ShouldBeTrue)

		Convey("A broadcast reaches the other node only", func() {
			a.Broadcast(ctx, verdict("node-a", 1))

			So(eventually(func() bool { return len(appB.received()) == 1 }), ShouldBeTrue)
			So(appB.received()[0].EscalationLevel, ShouldEqual, 1)
			time.Sleep(20 * time.Millisecond)
			So(appA.received(), ShouldBeEmpty)
		})

		Convey("A malformed payload is dropped", func() {
			b.inject([]byte(`{"participant_id":""}`))
			b.inject([]byte(`not json`))
			time.Sleep(20 * time.Millisecond)
			So(appA.received(), ShouldBeEmpty)
			So(appB.received(), ShouldBeEmpty)
		})

		Convey("The reconciliation sweep republishes current levels", func() {
			a.Reconcile(ctx)
			So(eventually(func() bool { return len(appB.received()) == 1 }), ShouldBeTrue)
			So(appB.received()[0].EscalationLevel, ShouldEqual, 2)
		})
	})

	Convey("Given a failing transport", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := &bus{fail: errors.New("down")}
		s := cluster.New(b, "node-a", &applier{}, levels{}, cluster.WithReconcileInterval(0))
		go func() { _ = s.Serve(ctx) }()

		Convey("Publishing errors are absorbed and the breaker stops calls", func() {
			for i := 0; i < 10; i++ {
				s.Broadcast(ctx, verdict("node-a", 1))
			}
			So(eventually(func() bool { return b.published() >= 5 }), ShouldBeTrue)
			time.Sleep(30 * time.Millisecond)
			So(b.published(), ShouldEqual, 5)
		})
	})

	Convey("Given a full outbound queue", t, func() {
		s := cluster.New(&bus{}, "node-a", &applier{}, levels{}, cluster.WithOutboundQueueSize(1))

		Convey("Broadcast does not block", func() {
			done := make(chan struct{})
			go func() {
				for i := 0; i < 5; i++ {
					s.Broadcast(context.Background(), verdict("node-a", 1))
				}
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				So("broadcast blocked", ShouldBeEmpty)
			}
		})
	})
}

func TestCodec(t *testing.T) {
	Convey("Given the verdict codec", t, func() {
		Convey("A valid verdict survives the wire", func() {
			v := verdict("node-a", 3)
			v.Epoch = 4
			b, err := cluster.Encode(v)
			So(err, ShouldBeNil)
			got, err := cluster.Decode(b)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, v)
		})

		Convey("Invalid verdicts are rejected", func() {
			cases := []string{
				`{"kind":"escalation","check_id":"c","origin_node_id":"n"}`,
				`{"kind":"escalation","participant_id":"p","origin_node_id":"n"}`,
				`{"kind":"escalation","participant_id":"p","check_id":"c"}`,
				`{"kind":"promote","participant_id":"p","check_id":"c","origin_node_id":"n"}`,
				`{"kind":"escalation","participant_id":"p","check_id":"c","origin_node_id":"n","escalation_level":-1}`,
				`[]`,
			}
			for _, c := range cases {
				_, err := cluster.Decode([]byte(c))
				So(errors.Is(err, cluster.ErrMalformedVerdict), ShouldBeTrue)
			}
		})
	})
}

func TestNoop(t *testing.T) {
	Convey("Given the noop transport", t, func() {
		n := cluster.NewNoop()
		ch, err := n.Subscribe(context.Background(), "t")
		So(err, ShouldBeNil)
		So(n.Publish(context.Background(), "t", []byte("x")), ShouldBeNil)

		Convey("Close ends subscriptions", func() {
			So(n.Close(), ShouldBeNil)
			So(n.Close(), ShouldBeNil)
			_, ok := <-ch
			So(ok, ShouldBeFalse)
		})
	})
}
