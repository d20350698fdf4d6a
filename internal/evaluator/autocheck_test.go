package evaluator

import "testing"

func TestParseAutoCheck(t *testing.T) {
	valid := `{"questions":[
		{"id":"q1","type":"numeric","key":{"value":42,"tolerance":0},"points":5},
		{"id":"text","type":"short_answer","key":{"keywords":["loop"]},"points":5}
	]}`

	cfg, err := ParseAutoCheck([]byte(valid))
	if err != nil {
		t.Fatalf("ParseAutoCheck(valid) = %v", err)
	}
	if len(cfg.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(cfg.Questions))
	}
	if cfg.Questions[0].ID != "q1" || cfg.Questions[1].ID != "text" {
		t.Errorf("question ids = %q, %q", cfg.Questions[0].ID, cfg.Questions[1].ID)
	}
}

func TestParseAutoCheckEmptyMeansManual(t *testing.T) {
	for _, raw := range []string{"", "null"} {
		cfg, err := ParseAutoCheck([]byte(raw))
		if err != nil || cfg != nil {
			t.Errorf("ParseAutoCheck(%q) = %v, %v; want nil, nil", raw, cfg, err)
		}
	}
}

func TestParseAutoCheckRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{oops`},
		{"no questions", `{"questions":[]}`},
		{"missing id", `{"questions":[{"type":"numeric","key":{"value":1},"points":1}]}`},
		{"duplicate id", `{"questions":[
			{"id":"q1","type":"numeric","key":{"value":1},"points":1},
			{"id":"q1","type":"numeric","key":{"value":2},"points":1}
		]}`},
		{"zero points", `{"questions":[{"id":"q1","type":"numeric","key":{"value":1},"points":0}]}`},
		{"malformed key", `{"questions":[{"id":"q1","type":"single_choice","key":{},"points":1}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseAutoCheck([]byte(tc.raw)); err == nil {
				t.Errorf("expected rejection for %s", tc.name)
			}
		})
	}
}
