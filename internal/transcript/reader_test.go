package transcript

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTranscript creates <agentDir>/projects/proj/<sessionID>.jsonl.
func writeTranscript(t *testing.T, agentDir, sessionID, content string) string {
	t.Helper()
	dir := filepath.Join(agentDir, "projects", "-home-user-projects-demo")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestReader(t *testing.T) (*Reader, string) {
	t.Helper()
	agentDir := t.TempDir()
	return NewReader(agentDir, t.TempDir()), agentDir
}

func TestReadAll_MissingTranscript(t *testing.T) {
	r, _ := newTestReader(t)

	res, err := r.ReadAll("no-such-session")
	if err != nil {
		t.Fatalf("missing transcript must not error: %v", err)
	}
	if res.Found {
		t.Fatal("Found = true for missing transcript")
	}
	if len(res.Turns) != 0 {
		t.Fatalf("turns = %d, want 0", len(res.Turns))
	}
}

func TestReadAll_ExtractsTokenClasses(t *testing.T) {
	r, agentDir := newTestReader(t)
	writeTranscript(t, agentDir, "s1",
		`{"type":"assistant","timestamp":"2025-06-01T10:00:00Z","requestId":"req1","message":{"id":"m1","model":"claude-sonnet-4-6","usage":{"input_tokens":2100,"output_tokens":471,"cache_creation_input_tokens":12400,"cache_read_input_tokens":234500}}}`+"\n")

	res, err := r.ReadAll("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(res.Turns))
	}

	turn := res.Turns[0]
	if turn.Input != 2100 || turn.Output != 471 || turn.CacheWrite != 12400 || turn.CacheRead != 234500 {
		t.Fatalf("turn = %+v, wrong token counts", turn)
	}
	if turn.Model != "claude-sonnet-4-6" {
		t.Errorf("model = %q", turn.Model)
	}
	if turn.ContextTokens() != 2100+12400+234500 {
		t.Errorf("ContextTokens = %d", turn.ContextTokens())
	}
}

func TestReadAll_CacheCreationBreakdownSummed(t *testing.T) {
	r, agentDir := newTestReader(t)
	writeTranscript(t, agentDir, "s1",
		`{"type":"assistant","requestId":"req1","message":{"id":"m1","model":"m","usage":{"input_tokens":1,"output_tokens":1,"cache_creation_input_tokens":999,"cache_creation":{"ephemeral_5m_input_tokens":200,"ephemeral_1h_input_tokens":300},"cache_read_input_tokens":0}}}`+"\n")

	res, err := r.ReadAll("s1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Turns[0].CacheWrite != 500 {
		t.Fatalf("CacheWrite = %d, want 500 (breakdown wins over legacy field)", res.Turns[0].CacheWrite)
	}
}

func TestReadAll_DedupeByRequestID(t *testing.T) {
	// Streaming re-emission: same requestId, last record wins.
	r, agentDir := newTestReader(t)
	writeTranscript(t, agentDir, "s1",
		`{"type":"assistant","requestId":"req1","message":{"id":"m1","model":"m","usage":{"input_tokens":100,"output_tokens":10}}}`+"\n"+
			`{"type":"assistant","requestId":"req1","message":{"id":"m1","model":"m","usage":{"input_tokens":100,"output_tokens":42}}}`+"\n"+
			`{"type":"assistant","requestId":"req2","message":{"id":"m2","model":"m","usage":{"input_tokens":50,"output_tokens":5}}}`+"\n")

	res, err := r.ReadAll("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Turns) != 2 {
		t.Fatalf("turns = %d, want 2 (dedup)", len(res.Turns))
	}
	if res.Turns[0].Output != 42 {
		t.Errorf("Output = %d, want 42 (last wins)", res.Turns[0].Output)
	}
	if res.Turns[0].Ordinal != 0 || res.Turns[1].Ordinal != 1 {
		t.Errorf("ordinals = %d,%d, want 0,1", res.Turns[0].Ordinal, res.Turns[1].Ordinal)
	}
}

func TestReadAll_SkipsMalformedAndIrrelevant(t *testing.T) {
	r, agentDir := newTestReader(t)
	writeTranscript(t, agentDir, "s1",
		"not json at all\n"+
			`{"type":"user","timestamp":"2025-06-01T10:00:00Z"}`+"\n"+
			`{"type":"assistant","broken`+"\n"+
			`{"type":"assistant","requestId":"req1","message":{"id":"m1","model":"m","usage":{"input_tokens":1,"output_tokens":1}}}`+"\n")

	res, err := r.ReadAll("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(res.Turns))
	}
	// The garbage line and the broken assistant line count; the user line
	// does not.
	if res.ParseErrors != 2 {
		t.Errorf("ParseErrors = %d, want 2", res.ParseErrors)
	}
}

func TestPoll_IncrementalWithTruncatedTail(t *testing.T) {
	r, agentDir := newTestReader(t)
	line1 := `{"type":"assistant","requestId":"req1","message":{"id":"m1","model":"m","usage":{"input_tokens":1,"output_tokens":1}}}`
	line2 := `{"type":"assistant","requestId":"req2","message":{"id":"m2","model":"m","usage":{"input_tokens":2,"output_tokens":2}}}`
	partial := `{"type":"assistant","requestId":"req3","message":{"id":"m3"`

	path := writeTranscript(t, agentDir, "s1", line1+"\n"+partial)

	pr, err := r.Poll("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pr.Turns) != 1 {
		t.Fatalf("first poll turns = %d, want 1", len(pr.Turns))
	}

	// Host finishes the partial record and appends another.
	rest := `,"model":"m","usage":{"input_tokens":3,"output_tokens":3}}}`
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(rest + "\n" + line2 + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	pr, err = r.Poll("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pr.Turns) != 2 {
		t.Fatalf("second poll turns = %d, want 2 (completed partial + new)", len(pr.Turns))
	}
	if pr.Turns[0].ID != "req3" || pr.Turns[1].ID != "req2" {
		t.Fatalf("second poll IDs = %q,%q", pr.Turns[0].ID, pr.Turns[1].ID)
	}

	// Nothing new: empty poll, same offset.
	pr2, err := r.Poll("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pr2.Turns) != 0 {
		t.Fatalf("idle poll turns = %d, want 0", len(pr2.Turns))
	}
	if pr2.Offset != pr.Offset {
		t.Fatalf("idle poll moved cursor %d -> %d", pr.Offset, pr2.Offset)
	}
}

func TestPoll_RestartableAfterCursorLoss(t *testing.T) {
	r, agentDir := newTestReader(t)
	writeTranscript(t, agentDir, "s1",
		`{"type":"assistant","requestId":"req1","message":{"id":"m1","model":"m","usage":{"input_tokens":1,"output_tokens":1}}}`+"\n")

	if _, err := r.Poll("s1"); err != nil {
		t.Fatal(err)
	}
	if err := r.ResetCursor("s1"); err != nil {
		t.Fatal(err)
	}

	pr, err := r.Poll("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pr.Turns) != 1 {
		t.Fatalf("turns after reset = %d, want 1 (full re-read)", len(pr.Turns))
	}
}

func TestLocate_MissingProjectsDir(t *testing.T) {
	r := NewReader(t.TempDir(), t.TempDir())
	if path := r.Locate("s1"); path != "" {
		t.Fatalf("Locate = %q, want empty", path)
	}
	if path := r.Locate(""); path != "" {
		t.Fatalf("Locate(\"\") = %q, want empty", path)
	}
}

func TestAssistantTurn(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"assistant", `{"type":"assistant","message":{}}`, true},
		{"user irrelevant", `{"type":"user","foo":"bar"}`, false},
		{"spaced", `{"type": "assistant"}`, true},
		{"nested type ignored", `{"data":{"type":"assistant"},"type":"user"}`, false},
		{"type as value", `{"kind":"type","type":"assistant"}`, true},
		{"type after array", `{"tags":["assistant"],"type":"assistant"}`, true},
		{"type after number", `{"n":42,"type":"assistant"}`, true},
		{"no type field", `{"message":"hello"}`, false},
		{"non-string type", `{"type":123}`, false},
		{"empty object", `{}`, false},
		{"not json", `not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assistantTurn([]byte(tt.input))
			if got != tt.want {
				t.Errorf("assistantTurn(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// FuzzAssistantTurn checks the byte-level scanner never panics on arbitrary
// input; it processes files the engine does not control.
func FuzzAssistantTurn(f *testing.F) {
	f.Add([]byte(`{"type":"assistant","message":{"id":"x","usage":{}}}`))
	f.Add([]byte(`{"type":"user","timestamp":"2025-06-01T10:00:00Z"}`))
	f.Add([]byte(`{"data":{"type":"nested"},"type":"assistant"}`))
	f.Add([]byte(`not json`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"type":null}`))
	f.Add([]byte(`{"type":123}`))
	f.Add([]byte(``))
	f.Add([]byte(`{"type":"assis`)) // unterminated string
	f.Add([]byte(`{"a":"\"","type":"assistant"}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		assistantTurn(data)
	})
}
