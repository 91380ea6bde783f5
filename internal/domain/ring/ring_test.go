package ring_test

import (
	"testing"

	"github.com/okian/tempoguard/internal/domain/ring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRing(t *testing.T) {
	Convey("Given a ring of capacity 3", t, func() {
		r := ring.New[int](3)

		Convey("When fewer values than capacity are pushed", func() {
			_, evicted := r.Push(1)
			r.Push(2)

			Convey("Then nothing is evicted and order is preserved", func() {
				So(evicted, ShouldBeFalse)
				So(r.Len(), ShouldEqual, 2)
				So(r.Full(), ShouldBeFalse)
				So(r.Values(), ShouldResemble, []int{1, 2})
			})
		})

		Convey("When the ring overflows", func() {
			for i := 1; i <= 3; i++ {
				r.Push(i)
			}
			old, evicted := r.Push(4)
			r.Push(5)

			Convey("Then the oldest values are overwritten", func() {
				So(evicted, ShouldBeTrue)
				So(old, ShouldEqual, 1)
				So(r.Len(), ShouldEqual, 3)
				So(r.Values(), ShouldResemble, []int{3, 4, 5})
				So(r.At(0), ShouldEqual, 3)
				last, ok := r.Last()
				So(ok, ShouldBeTrue)
				So(last, ShouldEqual, 5)
			})
		})

		Convey("When reset", func() {
			r.Push(9)
			r.Reset()

			Convey("Then it is empty with the same capacity", func() {
				So(r.Len(), ShouldEqual, 0)
				So(r.Cap(), ShouldEqual, 3)
				_, ok := r.Last()
				So(ok, ShouldBeFalse)
				So(func() { r.At(0) }, ShouldPanic)
			})
		})

		Convey("When built with a non-positive capacity", func() {
			small := ring.New[string](0)
			So(small.Cap(), ShouldEqual, 1)
		})
	})
}
