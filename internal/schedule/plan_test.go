package schedule

import (
	"testing"
	"time"
)

func ts(v int64) *int64 { return &v }

func TestPlanScheduled(t *testing.T) {
	if (Plan{Kind: KindLesson}).Scheduled() {
		t.Fatal("lesson plan without start must not be scheduled")
	}
	if !(Plan{Kind: KindLesson, StartAt: ts(100)}).Scheduled() {
		t.Fatal("lesson plan needs only a start")
	}
	if (Plan{Kind: KindTest, StartAt: ts(100)}).Scheduled() {
		t.Fatal("test plan without end must not be scheduled")
	}
	if !(Plan{Kind: KindTest, StartAt: ts(100), EndAt: ts(200)}).Scheduled() {
		t.Fatal("test plan with both ends must be scheduled")
	}
}

func TestPlanActiveBoundsInclusive(t *testing.T) {
	p := Plan{Kind: KindTest, StartAt: ts(100), EndAt: ts(200)}

	cases := []struct {
		at   int64
		want bool
	}{
		{99, false},
		{100, true}, // first instant counts
		{150, true},
		{200, true}, // last instant counts
		{201, false},
	}
	for _, c := range cases {
		if got := p.Active(time.Unix(c.at, 0)); got != c.want {
			t.Fatalf("Active(%d) = %v, want %v", c.at, got, c.want)
		}
	}
}

func TestLessonPlanNeverActive(t *testing.T) {
	p := Plan{Kind: KindLesson, StartAt: ts(100)}
	if p.Active(time.Unix(150, 0)) {
		t.Fatal("lesson plans gate visibility, not activity windows")
	}
}

func TestNormalizeSwapsInvertedRange(t *testing.T) {
	start, end := normalize(ts(200), ts(100))
	if *start != 100 || *end != 200 {
		t.Fatalf("normalize = (%d,%d), want (100,200)", *start, *end)
	}
	start, end = normalize(ts(100), nil)
	if *start != 100 || end != nil {
		t.Fatal("normalize must pass partial ranges through")
	}
}
