package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/studycontrol/studycontrol/internal/assessment"
	"github.com/studycontrol/studycontrol/internal/rbac"
)

// fakeStore lets each test stub exactly the calls its handler makes.
type fakeStore struct {
	startFn      func(ctx context.Context, testID, userID string) (assessment.ResultTest, error)
	submitFn     func(ctx context.Context, attemptID string, answerIDs []string) (assessment.ResultTest, error)
	getFn        func(ctx context.Context, id string) (assessment.ResultTest, error)
	getSnapFn    func(ctx context.Context, id string) (assessment.ResultTest, error)
	listFn       func(ctx context.Context, opts assessment.AttemptListOpts) ([]assessment.ResultTest, error)
}

func (f *fakeStore) PutTest(context.Context, assessment.Test) error { return nil }
func (f *fakeStore) GetTest(context.Context, string) (assessment.Test, error) {
	return assessment.Test{}, assessment.ErrTestNotFound
}
func (f *fakeStore) StartAttempt(ctx context.Context, testID, userID string) (assessment.ResultTest, error) {
	return f.startFn(ctx, testID, userID)
}
func (f *fakeStore) Submit(ctx context.Context, attemptID string, answerIDs []string) (assessment.ResultTest, error) {
	return f.submitFn(ctx, attemptID, answerIDs)
}
func (f *fakeStore) GetAttempt(ctx context.Context, id string) (assessment.ResultTest, error) {
	return f.getFn(ctx, id)
}
func (f *fakeStore) GetAttemptSnapshot(ctx context.Context, id string) (assessment.ResultTest, error) {
	return f.getSnapFn(ctx, id)
}
func (f *fakeStore) ListAttempts(ctx context.Context, opts assessment.AttemptListOpts) ([]assessment.ResultTest, error) {
	return f.listFn(ctx, opts)
}

func asUser(r *http.Request, sub, role string) *http.Request {
	ctx := rbac.WithSubject(r.Context(), sub)
	return r.WithContext(rbac.WithRole(ctx, role))
}

func withURLParam(r *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestStartAttemptDenialMapsTo403(t *testing.T) {
	store := &fakeStore{
		startFn: func(_ context.Context, testID, userID string) (assessment.ResultTest, error) {
			if testID != "tst-1" || userID != "stu-1" {
				t.Fatalf("wrong identity: %s/%s", testID, userID)
			}
			return assessment.ResultTest{}, &assessment.AttemptDenied{Reason: assessment.ReasonExhausted}
		},
	}
	req := httptest.NewRequest("POST", "/attempts", strings.NewReader(`{"test_id":"tst-1"}`))
	req = asUser(req, "stu-1", "student")
	rr := httptest.NewRecorder()
	StartAttemptHandler(store)(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["reason"] != "exhausted" {
		t.Fatalf("reason = %q", body["reason"])
	}
}

func TestStartAttemptConflictMapsTo409(t *testing.T) {
	store := &fakeStore{
		startFn: func(context.Context, string, string) (assessment.ResultTest, error) {
			return assessment.ResultTest{}, assessment.ErrAttemptOpen
		},
	}
	req := asUser(httptest.NewRequest("POST", "/attempts", strings.NewReader(`{"test_id":"t"}`)), "stu-1", "student")
	rr := httptest.NewRecorder()
	StartAttemptHandler(store)(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestStartAttemptHidesCorrectFlags(t *testing.T) {
	store := &fakeStore{
		startFn: func(context.Context, string, string) (assessment.ResultTest, error) {
			return assessment.ResultTest{
				ID: "att-1", TestID: "tst-1", TimeLimitMin: 30,
				Questions: []assessment.ResultQuestion{{
					ID: "rq-1", Text: "q",
					Answers: []assessment.ResultAnswer{
						{ID: "ra-1", SourceAnswerID: "a-1", Text: "yes", Correct: true},
					},
				}},
			}, nil
		},
	}
	req := asUser(httptest.NewRequest("POST", "/attempts", strings.NewReader(`{"test_id":"tst-1"}`)), "stu-1", "student")
	rr := httptest.NewRecorder()
	StartAttemptHandler(store)(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "correct") {
		t.Fatalf("correctness leaked to the student: %s", rr.Body.String())
	}
	// the student submits back live answer IDs
	if !strings.Contains(rr.Body.String(), `"a-1"`) {
		t.Fatalf("live answer id missing: %s", rr.Body.String())
	}
}

func TestSubmitChecksOwnership(t *testing.T) {
	store := &fakeStore{
		getFn: func(context.Context, string) (assessment.ResultTest, error) {
			return assessment.ResultTest{ID: "att-1", UserID: "someone-else"}, nil
		},
	}
	req := httptest.NewRequest("POST", "/attempts/att-1/submit", strings.NewReader(`{"answer_ids":[]}`))
	req = withURLParam(asUser(req, "stu-1", "student"), "attemptID", "att-1")
	rr := httptest.NewRecorder()
	SubmitAttemptHandler(store)(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestCountdownClampsAndDegrades(t *testing.T) {
	started := time.Unix(1_700_000_000, 0)
	attempt := assessment.ResultTest{ID: "att-1", UserID: "stu-1", TimeLimitMin: 30, StartedAt: started.Unix()}
	store := &fakeStore{
		getFn: func(_ context.Context, id string) (assessment.ResultTest, error) {
			if id != "att-1" {
				return assessment.ResultTest{}, assessment.ErrAttemptNotFound
			}
			return attempt, nil
		},
	}
	call := func(now time.Time, attemptID string) map[string]int {
		t.Helper()
		h := CountdownHandler(store, func() time.Time { return now })
		req := withURLParam(httptest.NewRequest("GET", "/attempts/"+attemptID+"/countdown", nil), "attemptID", attemptID)
		rr := httptest.NewRecorder()
		h(rr, asUser(req, "stu-1", "student"))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		var out map[string]int
		_ = json.Unmarshal(rr.Body.Bytes(), &out)
		return out
	}

	out := call(started.Add(10*time.Minute), "att-1")
	if out["minutes"] != 20 || out["seconds"] != 0 {
		t.Fatalf("mid-attempt countdown = %v", out)
	}
	out = call(started.Add(45*time.Minute), "att-1")
	if out["minutes"] != 0 || out["seconds"] != 0 {
		t.Fatalf("overdue countdown must clamp to zero: %v", out)
	}
	out = call(started, "missing")
	if out["minutes"] != 0 || out["seconds"] != 0 {
		t.Fatalf("missing attempt must read as expired: %v", out)
	}

	closedAt := started.Add(5 * time.Minute).Unix()
	attempt.SubmittedAt = &closedAt
	out = call(started.Add(6*time.Minute), "att-1")
	if out["minutes"] != 0 || out["seconds"] != 0 {
		t.Fatalf("closed attempt must read as expired: %v", out)
	}
}

func TestListAttemptsPinsStudentsToOwn(t *testing.T) {
	var seen assessment.AttemptListOpts
	store := &fakeStore{
		listFn: func(_ context.Context, opts assessment.AttemptListOpts) ([]assessment.ResultTest, error) {
			seen = opts
			return nil, nil
		},
	}
	checker := rbac.NewChecker(nil)

	req := asUser(httptest.NewRequest("GET", "/attempts?user_id=victim", nil), "stu-1", "student")
	rr := httptest.NewRecorder()
	ListAttemptsHandler(store, checker)(rr, req)
	if seen.UserID != "stu-1" {
		t.Fatalf("student filter not pinned: %q", seen.UserID)
	}
	if rr.Body.String() != "[]\n" {
		t.Fatalf("nil list must render as []: %q", rr.Body.String())
	}

	req = asUser(httptest.NewRequest("GET", "/attempts?user_id=stu-9", nil), "staff-1", "staff")
	ListAttemptsHandler(store, checker)(httptest.NewRecorder(), req)
	if seen.UserID != "stu-9" {
		t.Fatalf("staff filter overridden: %q", seen.UserID)
	}
}
