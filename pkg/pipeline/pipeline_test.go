package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
)

// ─── test stages ──────────────────────────────────────────────────────────────

var (
	numsKey  = pipeline.NewKey[[]int]("nums")
	totalKey = pipeline.NewKey[int]("total")
)

// funcStage adapts plain functions to pipeline.Stage.
type funcStage[P, R any] struct {
	prepare  func(*pipeline.Context) (P, error)
	execute  func(context.Context, P) (R, error)
	finalize func(*pipeline.Context, P, R) string
	keys     []pipeline.KeySpec
}

func (s funcStage[P, R]) Prepare(c *pipeline.Context) (P, error) {
	if s.prepare == nil {
		var zero P
		return zero, nil
	}
	return s.prepare(c)
}

func (s funcStage[P, R]) Execute(ctx context.Context, in P) (R, error) {
	if s.execute == nil {
		var zero R
		return zero, nil
	}
	return s.execute(ctx, in)
}

func (s funcStage[P, R]) Finalize(c *pipeline.Context, in P, out R) string {
	if s.finalize == nil {
		return pipeline.DefaultLabel
	}
	return s.finalize(c, in, out)
}

func (s funcStage[P, R]) Keys() []pipeline.KeySpec { return s.keys }

// setStage writes value under key and returns label.
func setStage(key, value, label string) *pipeline.Node {
	return pipeline.NewNode(key, funcStage[struct{}, string]{
		execute: func(context.Context, struct{}) (string, error) { return value, nil },
		finalize: func(c *pipeline.Context, _ struct{}, out string) string {
			c.Set(key, out)
			return label
		},
	})
}

// sumStage sums numsKey into totalKey and routes "empty" for no input.
func sumStage() *pipeline.Node {
	return pipeline.NewNode("sum", funcStage[[]int, int]{
		prepare: func(c *pipeline.Context) ([]int, error) { return numsKey.Get(c, nil) },
		execute: func(_ context.Context, in []int) (int, error) {
			total := 0
			for _, n := range in {
				total += n
			}
			return total, nil
		},
		finalize: func(c *pipeline.Context, in []int, out int) string {
			totalKey.Set(c, out)
			if len(in) == 0 {
				return "empty"
			}
			return pipeline.DefaultLabel
		},
		keys: append(pipeline.Reads(numsKey), pipeline.Writes(totalKey)...),
	})
}

func failingStage(name string, err error) *pipeline.Node {
	return pipeline.NewNode(name, funcStage[struct{}, struct{}]{
		execute: func(context.Context, struct{}) (struct{}, error) { return struct{}{}, err },
	})
}

func mustBuild(t *testing.T, b *pipeline.Builder, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	p, err := b.Build(opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

// ─── Context tests ────────────────────────────────────────────────────────────

func TestContext_GetDefault(t *testing.T) {
	t.Parallel()
	c := pipeline.NewContext()
	if got := c.Get("missing", "fallback"); got != "fallback" {
		t.Errorf("Get = %v, want fallback", got)
	}
	c.Set("k", 1)
	c.Set("k", 2)
	if got := c.Get("k", 0); got != 2 {
		t.Errorf("Get = %v, want 2", got)
	}
	if !c.Has("k") || c.Has("missing") {
		t.Error("Has reported wrong presence")
	}
}

func TestContext_SnapshotIsCopy(t *testing.T) {
	t.Parallel()
	c := pipeline.NewContextFrom(map[string]any{"a": 1})
	snap := c.Snapshot()
	snap["b"] = 2
	if c.Has("b") {
		t.Error("mutating snapshot changed context")
	}
	if got := c.Keys(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("Keys = %v", got)
	}
}

func TestContext_WriteJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out", "ctx.json")
	c := pipeline.NewContext()
	c.Set("greeting", "hello")

	if err := c.WriteJSON(path, "report"); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got struct {
		LastStage string         `json:"last_stage"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.LastStage != "report" || got.Data["greeting"] != "hello" {
		t.Errorf("dump = %+v", got)
	}
}

// ─── Key tests ────────────────────────────────────────────────────────────────

func TestKey_Get(t *testing.T) {
	t.Parallel()
	c := pipeline.NewContext()

	got, err := numsKey.Get(c, []int{9})
	if err != nil || !slices.Equal(got, []int{9}) {
		t.Fatalf("missing key: got %v, %v", got, err)
	}

	numsKey.Set(c, []int{1, 2})
	got, err = numsKey.Get(c, nil)
	if err != nil || !slices.Equal(got, []int{1, 2}) {
		t.Fatalf("present key: got %v, %v", got, err)
	}

	c.Set("nums", "not a slice")
	_, err = numsKey.Get(c, nil)
	var kte *pipeline.KeyTypeError
	if !errors.As(err, &kte) {
		t.Fatalf("expected KeyTypeError, got %v", err)
	}
	if kte.Key != "nums" {
		t.Errorf("Key = %q", kte.Key)
	}
}

// ─── Builder tests ────────────────────────────────────────────────────────────

func TestBuild_Valid(t *testing.T) {
	t.Parallel()
	b := pipeline.NewBuilder().
		Add(setStage("a", "1", ""), setStage("b", "2", "")).
		Chain("a", "b")
	p := mustBuild(t, b)
	if p.StartName() != "a" {
		t.Errorf("start = %q, want a", p.StartName())
	}
	if got := p.Next("a", pipeline.DefaultLabel); got != "b" {
		t.Errorf("Next(a) = %q, want b", got)
	}
	if got := p.Next("b", pipeline.DefaultLabel); got != "" {
		t.Errorf("Next(b) = %q, want empty", got)
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		build func() *pipeline.Builder
		want  string
	}{
		{
			name:  "empty",
			build: pipeline.NewBuilder,
			want:  "no start stage",
		},
		{
			name: "unknown target",
			build: func() *pipeline.Builder {
				return pipeline.NewBuilder().Add(setStage("a", "", "")).Connect("a", "", "ghost")
			},
			want: `unknown target stage "ghost"`,
		},
		{
			name: "duplicate label",
			build: func() *pipeline.Builder {
				return pipeline.NewBuilder().
					Add(setStage("a", "", ""), setStage("b", "", ""), setStage("c", "", "")).
					Connect("a", "x", "b").
					Connect("a", "x", "c")
			},
			want: `label "x" already leads to "b"`,
		},
		{
			name: "unreachable",
			build: func() *pipeline.Builder {
				return pipeline.NewBuilder().Add(setStage("a", "", ""), setStage("island", "", ""))
			},
			want: `stage "island": stage is not reachable from start`,
		},
		{
			name: "duplicate stage",
			build: func() *pipeline.Builder {
				return pipeline.NewBuilder().Add(setStage("a", "", ""), setStage("a", "", ""))
			},
			want: "registered twice",
		},
		{
			name: "unknown start",
			build: func() *pipeline.Builder {
				return pipeline.NewBuilder().Add(setStage("a", "", "")).Start("nope")
			},
			want: `start stage "nope" is not registered`,
		},
		{
			name: "key type conflict",
			build: func() *pipeline.Builder {
				wrong := pipeline.NewNode("producer", funcStage[struct{}, struct{}]{
					keys: pipeline.Writes(pipeline.NewKey[string]("nums")),
				})
				return pipeline.NewBuilder().Add(wrong, sumStage()).Chain("producer", "sum")
			},
			want: `key "nums"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.build().Build()
			if err == nil {
				t.Fatal("expected build error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

// ─── Engine tests ─────────────────────────────────────────────────────────────

func TestRun_FollowsLabels(t *testing.T) {
	t.Parallel()
	b := pipeline.NewBuilder().
		Add(sumStage(), setStage("full", "yes", ""), setStage("none", "yes", "")).
		Connect("sum", pipeline.DefaultLabel, "full").
		Connect("sum", "empty", "none")
	p := mustBuild(t, b)

	tests := []struct {
		name     string
		nums     []int
		wantPath []string
	}{
		{"with input", []int{1, 2, 3}, []string{"sum", "full"}},
		{"empty input", nil, []string{"sum", "none"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := pipeline.NewContext()
			if tt.nums != nil {
				numsKey.Set(c, tt.nums)
			}
			trace, err := p.Run(t.Context(), c)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := trace.Stages(); !slices.Equal(got, tt.wantPath) {
				t.Errorf("path = %v, want %v", got, tt.wantPath)
			}
		})
	}
}

func TestRun_EmptyLabelIsDefault(t *testing.T) {
	t.Parallel()
	b := pipeline.NewBuilder().
		Add(setStage("a", "1", ""), setStage("b", "2", "")).
		Connect("a", pipeline.DefaultLabel, "b")
	c := pipeline.NewContext()
	trace, err := mustBuild(t, b).Run(t.Context(), c)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if last, _ := trace.Last(); last.Stage != "b" {
		t.Errorf("last stage = %q, want b", last.Stage)
	}
	if c.Get("b", "") != "2" {
		t.Error("stage b did not run")
	}
}

func TestRun_MissingEdgeEndsNormally(t *testing.T) {
	t.Parallel()
	b := pipeline.NewBuilder().
		Add(setStage("a", "1", "unwired"), setStage("b", "2", "")).
		Connect("a", pipeline.DefaultLabel, "b")
	c := pipeline.NewContext()
	if _, err := mustBuild(t, b).Run(t.Context(), c); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.Has("b") {
		t.Error("stage b ran despite unwired label")
	}
}

func TestRun_UnclassifiedFailureAborts(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	b := pipeline.NewBuilder().
		Add(setStage("first", "done", ""), failingStage("broken", boom), setStage("after", "x", "")).
		Chain("first", "broken", "after")
	c := pipeline.NewContext()

	trace, err := mustBuild(t, b).Run(t.Context(), c)
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if se.Stage != "broken" || se.Phase != pipeline.PhaseExecute {
		t.Errorf("StageError = %+v", se)
	}
	if !errors.Is(err, boom) {
		t.Error("cause not preserved")
	}
	if c.Get("first", "") != "done" {
		t.Error("completed stage output lost")
	}
	if c.Has("after") {
		t.Error("stage after failure ran")
	}
	if got := trace.Stages(); !slices.Equal(got, []string{"first"}) {
		t.Errorf("trace = %v", got)
	}
}

func TestRun_PrepareTypeMismatch(t *testing.T) {
	t.Parallel()
	p := mustBuild(t, pipeline.NewBuilder().Add(sumStage()))
	c := pipeline.NewContext()
	c.Set("nums", "oops")

	_, err := p.Run(t.Context(), c)
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Phase != pipeline.PhasePrepare {
		t.Fatalf("expected prepare StageError, got %v", err)
	}
	var kte *pipeline.KeyTypeError
	if !errors.As(err, &kte) {
		t.Errorf("expected KeyTypeError in chain, got %v", err)
	}
}

func TestRun_PanicRecovered(t *testing.T) {
	t.Parallel()
	panicky := pipeline.NewNode("panicky", funcStage[struct{}, struct{}]{
		finalize: func(*pipeline.Context, struct{}, struct{}) string { panic("kaboom") },
	})
	_, err := mustBuild(t, pipeline.NewBuilder().Add(panicky)).Run(t.Context(), pipeline.NewContext())
	if !errors.Is(err, pipeline.ErrStagePanic) {
		t.Fatalf("expected ErrStagePanic, got %v", err)
	}
	if !strings.Contains(err.Error(), "kaboom") || !strings.Contains(err.Error(), "panicky") {
		t.Errorf("error lacks detail: %v", err)
	}
}

func TestRun_FinalizePanicKeepsNoWrites(t *testing.T) {
	t.Parallel()
	half := pipeline.NewNode("half", funcStage[struct{}, struct{}]{
		finalize: func(c *pipeline.Context, _ struct{}, _ struct{}) string {
			c.Set("written", "yes")
			c.Set("a", "overwritten")
			panic("midway")
		},
	})
	b := pipeline.NewBuilder().Add(setStage("a", "1", ""), half).Chain("a", "half")

	c := pipeline.NewContext()
	trace, err := mustBuild(t, b).Run(t.Context(), c)

	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Stage != "half" || se.Phase != pipeline.PhaseFinalize {
		t.Fatalf("err = %v, want finalize StageError from half", err)
	}
	if c.Has("written") {
		t.Error("write from the panicking finalize was kept")
	}
	if got := c.Get("a", ""); got != "1" {
		t.Errorf("a = %v, want 1 from the completed stage", got)
	}
	if got := trace.Stages(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("trace = %v, want [a]", got)
	}
}

func TestRun_VisitLimit(t *testing.T) {
	t.Parallel()
	b := pipeline.NewBuilder().
		Add(setStage("ping", "1", ""), setStage("pong", "2", "")).
		Chain("ping", "pong", "ping")
	_, err := mustBuild(t, b, pipeline.WithMaxVisits(3)).Run(t.Context(), pipeline.NewContext())
	if !errors.Is(err, pipeline.ErrVisitLimit) {
		t.Fatalf("expected ErrVisitLimit, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := mustBuild(t, pipeline.NewBuilder().Add(setStage("a", "1", ""))).Run(ctx, pipeline.NewContext())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_LogsStages(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	b := pipeline.NewBuilder().Add(setStage("a", "1", ""))
	p := mustBuild(t, b, pipeline.WithLogger(zap.New(core)))
	if _, err := p.Run(t.Context(), pipeline.NewContext()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	entries := logs.FilterMessage("executing stage").All()
	if len(entries) != 1 {
		t.Fatalf("executing stage logged %d times, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["stage"]; got != "a" {
		t.Errorf("stage field = %v", got)
	}
}

// ─── DOT tests ────────────────────────────────────────────────────────────────

func TestFromDOT(t *testing.T) {
	t.Parallel()
	src := `digraph sums {
		sum [start=true]
		sum -> full
		sum -> none [label=empty]
	}`
	b, err := pipeline.FromDOT(src, setStage("full", "y", ""), setStage("none", "y", ""), sumStage())
	if err != nil {
		t.Fatalf("FromDOT: %v", err)
	}
	p := mustBuild(t, b)
	if p.StartName() != "sum" {
		t.Errorf("start = %q, want sum", p.StartName())
	}
	if got := p.Next("sum", "empty"); got != "none" {
		t.Errorf("Next(sum, empty) = %q, want none", got)
	}
	if got := p.Next("sum", pipeline.DefaultLabel); got != "full" {
		t.Errorf("Next(sum, default) = %q, want full", got)
	}
}

func TestFromDOT_UnknownStage(t *testing.T) {
	t.Parallel()
	_, err := pipeline.FromDOT(`digraph g { a -> mystery }`, setStage("a", "", ""))
	if err == nil || !strings.Contains(err.Error(), "mystery") {
		t.Fatalf("expected unknown stage error, got %v", err)
	}
}

func TestDOT_RoundTrip(t *testing.T) {
	t.Parallel()
	nodes := []*pipeline.Node{sumStage(), setStage("full", "y", ""), setStage("none", "y", "")}
	b := pipeline.NewBuilder().Add(nodes...).
		Connect("sum", "", "full").
		Connect("sum", "empty", "none")
	p := mustBuild(t, b)

	b2, err := pipeline.FromDOT(p.DOT("sums"), nodes...)
	if err != nil {
		t.Fatalf("FromDOT: %v\n%s", err, p.DOT("sums"))
	}
	p2 := mustBuild(t, b2)
	if !slices.Equal(p.Edges(), p2.Edges()) {
		t.Errorf("edges differ:\n%v\n%v", p.Edges(), p2.Edges())
	}
	text := p.Text("sums")
	if !strings.Contains(text, "reads=nums") || !strings.Contains(text, "[empty]") {
		t.Errorf("text rendering incomplete:\n%s", text)
	}
}
