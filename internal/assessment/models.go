package assessment

import "github.com/studycontrol/studycontrol/internal/schedule"

// Test is the live, editable definition. Attempts never read it after the
// snapshot is taken, so staff edits only affect future attempts.
type Test struct {
	ID           string `json:"id"`
	LessonID     string `json:"lesson_id"`
	Name         string `json:"name"`
	Tries        int    `json:"tries"`          // max attempts, default 3
	PassPercent  int    `json:"pass_percent"`   // 10..100, default 60
	TimeLimitMin int    `json:"time_limit_min"` // minutes allotted per attempt

	Questions []Question `json:"questions,omitempty"`
}

func (t Test) PlanKind() schedule.Kind { return schedule.KindTest }
func (t Test) PlanTargetID() string    { return t.ID }

type Question struct {
	ID       string   `json:"id"`
	TestID   string   `json:"test_id,omitempty"`
	Text     string   `json:"text"`
	Position int      `json:"position"`
	Answers  []Answer `json:"answers,omitempty"`
}

type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id,omitempty"`
	Text       string `json:"text"`
	Correct    bool   `json:"correct"`
	Position   int    `json:"position"`
}

// ResultTest is one attempt. PassPercent and TimeLimitMin are copied from
// the test at start so the record stays self-contained.
type ResultTest struct {
	ID           string  `json:"id"`
	TestID       string  `json:"test_id"`
	UserID       string  `json:"user_id"`
	PassPercent  int     `json:"pass_percent"`
	TimeLimitMin int     `json:"time_limit_min"`
	Percent      float64 `json:"percent"`
	Passed       bool    `json:"passed"`
	StartedAt    int64   `json:"started_at"`
	SubmittedAt  *int64  `json:"submitted_at,omitempty"`

	Questions []ResultQuestion `json:"questions,omitempty"`
}

func (rt ResultTest) Open() bool { return rt.SubmittedAt == nil }

// ResultQuestion / ResultAnswer are the frozen per-attempt copy. Only the
// Given flag is ever mutated, once, at submission.
type ResultQuestion struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Position int            `json:"position"`
	Answers  []ResultAnswer `json:"answers,omitempty"`
}

type ResultAnswer struct {
	ID             string `json:"id"`
	SourceAnswerID string `json:"source_answer_id"`
	Text           string `json:"text"`
	Correct        bool   `json:"correct"`
	Given          bool   `json:"given"`
	Position       int    `json:"position"`
}

// ---- student-safe projection ----

// AttemptView is what a student sees when an attempt opens: the snapshot
// without correctness flags. Answer IDs are the live answer IDs the client
// submits back.
type AttemptView struct {
	ID           string         `json:"id"`
	TestID       string         `json:"test_id"`
	StartedAt    int64          `json:"started_at"`
	TimeLimitMin int            `json:"time_limit_min"`
	Questions    []QuestionView `json:"questions"`
}

type QuestionView struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Answers []AnswerView `json:"answers"`
}

type AnswerView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func StudentView(rt ResultTest) AttemptView {
	v := AttemptView{
		ID:           rt.ID,
		TestID:       rt.TestID,
		StartedAt:    rt.StartedAt,
		TimeLimitMin: rt.TimeLimitMin,
		Questions:    make([]QuestionView, 0, len(rt.Questions)),
	}
	for _, q := range rt.Questions {
		qv := QuestionView{ID: q.ID, Text: q.Text, Answers: make([]AnswerView, 0, len(q.Answers))}
		for _, a := range q.Answers {
			qv.Answers = append(qv.Answers, AnswerView{ID: a.SourceAnswerID, Text: a.Text})
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}
