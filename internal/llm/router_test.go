package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"appforge/internal/faults"
)

type fakeClient struct {
	name      string
	available bool
	vision    bool
	reply     string
	err       error
}

func (f *fakeClient) Name() string    { return f.name }
func (f *fakeClient) Available() bool { return f.available }


func (f *fakeClient) Meta() Meta {
	return Meta{Model: f.name + "-model", SupportsVision: f.vision}
}
func (f *fakeClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f.reply, f.err
}

func threeProviders() []Client {
	return []Client{
		&fakeClient{name: "anthropic", available: true, vision: true},
		&fakeClient{name: "openai", available: true},
		&fakeClient{name: "gemini", available: true, vision: true},
	}
}

func TestSelectFollowsTaskPriority(t *testing.T) {
	r := NewRouter(threeProviders(), 3, time.Minute)

	cases := map[TaskType]string{
		TaskReasoning: "anthropic",
		TaskCode:      "openai",
		TaskUIText:    "gemini",
	}
	for task, want := range cases {
		got, err := r.Select(task, false)
		if err != nil {
			t.Fatalf("Select(%s): %v", task, err)
		}
		if got.Name() != want {
			t.Errorf("Select(%s) = %s, want %s", task, got.Name(), want)
		}
	}
}

func TestSelectSkipsCircuitBroken(t *testing.T) {
	r := NewRouter(threeProviders(), 3, time.Minute)

	for i := 0; i < 3; i++ {
		r.Report("anthropic", false, 100*time.Millisecond)
	}

	got, err := r.Select(TaskReasoning, false)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Name() != "gemini" {
		t.Errorf("Select(reasoning) with anthropic broken = %s, want gemini", got.Name())
	}
}

func TestCircuitReprobesAfterInterval(t *testing.T) {
	r := NewRouter(threeProviders(), 3, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		r.Report("anthropic", false, time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	got, err := r.Select(TaskReasoning, false)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Name() != "anthropic" {
		t.Errorf("Select after reprobe interval = %s, want anthropic", got.Name())
	}
}

func TestSelectVisionRequired(t *testing.T) {
	providers := []Client{
		&fakeClient{name: "openai", available: true},
	}
	r := NewRouter(providers, 3, time.Minute)

	_, err := r.Select(TaskReasoning, true)
	if !errors.Is(err, faults.ErrProviderUnavailable) {
		t.Fatalf("Select(vision) with no vision adapter: got %v, want ErrProviderUnavailable", err)
	}
}

func TestRouterLiveness(t *testing.T) {
	// If at least one provider is available and not circuit-broken, Select
	// must return a non-nil provider for every task type.
	providers := []Client{
		&fakeClient{name: "gemini", available: true, vision: true},
	}
	r := NewRouter(providers, 3, time.Minute)

	for _, task := range []TaskType{TaskReasoning, TaskCode, TaskUIText} {
		got, err := r.Select(task, false)
		if err != nil || got == nil {
			t.Fatalf("Select(%s) = %v, %v; want live provider", task, got, err)
		}
	}
}

func TestSelectNoProviders(t *testing.T) {
	r := NewRouter([]Client{&fakeClient{name: "openai"}}, 3, time.Minute)
	if _, err := r.Select(TaskCode, false); !errors.Is(err, faults.ErrProviderUnavailable) {
		t.Fatalf("Select with no available providers: got %v, want ErrProviderUnavailable", err)
	}
}

func TestFallbackToCircuitBrokenWhenNothingElse(t *testing.T) {
	providers := []Client{&fakeClient{name: "anthropic", available: true, vision: true}}
	r := NewRouter(providers, 3, time.Hour)
	for i := 0; i < 5; i++ {
		r.Report("anthropic", false, time.Millisecond)
	}

	got, err := r.Select(TaskReasoning, false)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Name() != "anthropic" {
		t.Fatalf("expected last-resort fallback to the only provider")
	}
}

func TestSuccessRateTieBreak(t *testing.T) {
	r := NewRouter(threeProviders(), 3, time.Minute)

	// Degrade anthropic below gemini without opening its circuit.
	r.Report("anthropic", false, 10*time.Millisecond)
	r.Report("anthropic", true, 10*time.Millisecond)
	r.Report("gemini", true, 10*time.Millisecond)

	got, err := r.Select(TaskReasoning, false)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// Priority still wins over success rate for distinct ranks.
	if got.Name() != "anthropic" {
		t.Errorf("priority should dominate success rate, got %s", got.Name())
	}
}

func TestReportUpdatesAverageLatency(t *testing.T) {
	r := NewRouter(threeProviders(), 3, time.Minute)
	r.Report("openai", true, 100*time.Millisecond)
	r.Report("openai", true, 300*time.Millisecond)

	st := r.Stats()["openai"]
	if st.AvgLatency != 200*time.Millisecond {
		t.Errorf("AvgLatency = %v, want 200ms", st.AvgLatency)
	}
	if st.Attempts != 2 || st.Successes != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestResetHealth(t *testing.T) {
	r := NewRouter(threeProviders(), 3, time.Hour)
	for i := 0; i < 4; i++ {
		r.Report("anthropic", false, time.Millisecond)
	}
	r.ResetHealth()

	got, err := r.Select(TaskReasoning, false)
	if err != nil || got.Name() != "anthropic" {
		t.Fatalf("after ResetHealth Select = %v, %v; want anthropic", got, err)
	}
}
