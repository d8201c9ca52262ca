package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func appendTrace(name string) NodeFunc {
	return func(_ context.Context, state State) (State, error) {
		trace, _ := state["trace"].([]string)
		state["trace"] = append(trace, name)
		return state, nil
	}
}

func trace(state State) []string {
	got, _ := state["trace"].([]string)
	return got
}

func TestExecuteLinearFlow(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddNode("work", NodeTypeTask, appendTrace("work")).
		AddNode("end", NodeTypeEnd, appendTrace("end")).
		AddEdge("start", "work").
		AddEdge("work", "end").
		Build()

	state, err := g.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := "start,work,end"
	if got := strings.Join(trace(state), ","); got != want {
		t.Errorf("trace = %q, want %q", got, want)
	}
}

func TestExecuteConditionBranch(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{label: "left", want: "start,left,end"},
		{label: "right", want: "start,right,end"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			g := NewBuilder().
				AddNode("start", NodeTypeStart, appendTrace("start")).
				AddConditionNode("pick", func(_ context.Context, state State) (string, error) {
					return state["label"].(string), nil
				}, map[string]string{"left": "left", "right": "right"}).
				AddNode("left", NodeTypeTask, appendTrace("left")).
				AddNode("right", NodeTypeTask, appendTrace("right")).
				AddNode("end", NodeTypeEnd, appendTrace("end")).
				AddEdge("start", "pick").
				AddEdge("left", "end").
				AddEdge("right", "end").
				Build()

			state, err := g.Execute(context.Background(), State{"label": tt.label})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if got := strings.Join(trace(state), ","); got != tt.want {
				t.Errorf("trace = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecuteConditionUnknownLabel(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddConditionNode("pick", func(context.Context, State) (string, error) {
			return "nowhere", nil
		}, map[string]string{"left": "end"}).
		AddNode("end", NodeTypeEnd, appendTrace("end")).
		AddEdge("start", "pick").
		Build()

	if _, err := g.Execute(context.Background(), nil); err == nil {
		t.Fatal("Execute() error = nil, want branch label error")
	}
}

func TestExecuteForkJoin(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddNode("a", NodeTypeTask, appendTrace("a")).
		AddNode("b", NodeTypeTask, appendTrace("b")).
		AddNode("join", NodeTypeTask, appendTrace("join")).
		AddNode("end", NodeTypeEnd, appendTrace("end")).
		AddEdge("start", "a").
		AddEdge("start", "b").
		AddEdge("a", "join").
		AddEdge("b", "join").
		AddEdge("join", "end").
		RequireAllParents("join").
		Build()

	state, err := g.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got := trace(state)
	if len(got) != 5 {
		t.Fatalf("trace length = %d (%v), want 5", len(got), got)
	}
	if got[3] != "join" || got[4] != "end" {
		t.Errorf("trace tail = %v, want join then end", got[3:])
	}
	joins := 0
	for _, name := range got {
		if name == "join" {
			joins++
		}
	}
	if joins != 1 {
		t.Errorf("join ran %d times, want 1", joins)
	}
}

func TestExecuteJoinAfterSkippedBranch(t *testing.T) {
	// A condition routes to exactly one of the join's parents; the join
	// must still fire once that parent completes.
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddConditionNode("pick", func(context.Context, State) (string, error) {
			return "a", nil
		}, map[string]string{"a": "a", "b": "b"}).
		AddNode("a", NodeTypeTask, appendTrace("a")).
		AddNode("b", NodeTypeTask, appendTrace("b")).
		AddNode("join", NodeTypeTask, appendTrace("join")).
		AddNode("end", NodeTypeEnd, appendTrace("end")).
		AddEdge("start", "pick").
		AddEdge("a", "join").
		AddEdge("b", "join").
		AddEdge("join", "end").
		Build()

	state, err := g.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := "start,a,join,end"
	if got := strings.Join(trace(state), ","); got != want {
		t.Errorf("trace = %q, want %q", got, want)
	}
}

func TestExecuteNodeError(t *testing.T) {
	boom := errors.New("boom")
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddNode("work", NodeTypeTask, func(context.Context, State) (State, error) {
			return nil, boom
		}).
		AddNode("end", NodeTypeEnd, appendTrace("end")).
		AddEdge("start", "work").
		AddEdge("work", "end").
		Build()

	_, err := g.Execute(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want wrapped %v", err, boom)
	}
}

func TestExecuteLoopDetection(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddNode("spin", NodeTypeTask, appendTrace("spin")).
		AddNode("end", NodeTypeEnd, appendTrace("end")).
		AddEdge("start", "spin").
		AddEdge("spin", "spin").
		SetMaxVisits(3).
		SetEnd("end").
		Build()

	_, err := g.Execute(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "loop detected") {
		t.Errorf("Execute() error = %v, want loop detection", err)
	}
}

func TestExecuteNoStartNode(t *testing.T) {
	g := NewGraph()
	if _, err := g.Execute(context.Background(), nil); err == nil {
		t.Fatal("Execute() error = nil, want missing start node error")
	}
}

func TestAddNodeDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AddNode did not panic on duplicate name")
		}
	}()
	g := NewGraph()
	g.AddNode(&Node{Name: "n", Type: NodeTypeTask, Execute: appendTrace("n")})
	g.AddNode(&Node{Name: "n", Type: NodeTypeTask, Execute: appendTrace("n")})
}
