package hybrid

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/sweetpotato0/ai-tutor/graph"
	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/message"
	"github.com/sweetpotato0/ai-tutor/pkg/logging"
	"github.com/sweetpotato0/ai-tutor/pkg/telemetry"
	"github.com/sweetpotato0/ai-tutor/session"
	"github.com/sweetpotato0/ai-tutor/vector"
	"github.com/sweetpotato0/ai-tutor/websearch"
)

// DefaultTurnDeadline bounds one full turn including generation.
const DefaultTurnDeadline = 60 * time.Second

// stateKey indexes the turn state inside the graph state map.
const stateKey = "turn"

// turnState is the blackboard one turn threads through the flow graph.
type turnState struct {
	Query    string
	UseRAG   bool
	Decision Decision
	PDF      []*vector.Result
	Web      []websearch.Result
	Context  string
}

// TurnRequest is one user message addressed to the machine.
type TurnRequest struct {
	SessionID string
	Message   string
	UseRAG    bool
}

// Turn is a resolved request: the session it runs in and the lazy event
// stream. Events are produced on demand, so a slow consumer naturally
// applies back-pressure to generation.
type Turn struct {
	SessionID string
	Events    iter.Seq[*Event]
}

// Machine is the hybrid answering pipeline. It owns no transport; the
// server layer adapts its event stream onto SSE.
type Machine struct {
	router    *Router
	retriever *Retriever
	generator llm.Generator
	sessions  *session.Manager

	flow *graph.Graph

	temperature   float64
	contextBudget int
	turnDeadline  time.Duration
	maxHistory    int

	logger *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithTemperature sets the generator sampling temperature.
func WithTemperature(t float64) MachineOption {
	return func(m *Machine) {
		m.temperature = t
	}
}

// WithContextBudget caps the fused context length.
func WithContextBudget(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.contextBudget = n
		}
	}
}

// WithTurnDeadline bounds a whole turn.
func WithTurnDeadline(d time.Duration) MachineOption {
	return func(m *Machine) {
		if d > 0 {
			m.turnDeadline = d
		}
	}
}

// WithMaxHistory sets how many history messages feed generation.
func WithMaxHistory(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.maxHistory = n
		}
	}
}

// NewMachine wires the pipeline together.
func NewMachine(router *Router, retriever *Retriever, generator llm.Generator, sessions *session.Manager, opts ...MachineOption) *Machine {
	m := &Machine{
		router:        router,
		retriever:     retriever,
		generator:     generator,
		sessions:      sessions,
		temperature:   0.7,
		contextBudget: DefaultContextBudget,
		turnDeadline:  DefaultTurnDeadline,
		maxHistory:    session.DefaultMaxHistory,
		logger:        logging.WithComponent("hybrid"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.flow = m.buildFlow()
	return m
}

// buildFlow assembles the retrieval flow: route the query, run the
// chosen retrieval node, fuse the results. Generation streams outside
// the graph so deltas reach the caller as they arrive.
func (m *Machine) buildFlow() *graph.Graph {
	return graph.NewBuilder().
		AddNode("prepare", graph.NodeTypeStart, m.prepareNode).
		AddConditionNode("route", m.routeCondition, map[string]string{
			string(RouteNone):    "retrieve_none",
			string(RoutePDFOnly): "retrieve_pdf",
			string(RouteWebOnly): "retrieve_web",
			string(RouteBoth):    "retrieve_both",
		}).
		AddNode("retrieve_none", graph.NodeTypeTask, m.retrieveNoneNode).
		AddNode("retrieve_pdf", graph.NodeTypeTask, m.retrievePDFNode).
		AddNode("retrieve_web", graph.NodeTypeTask, m.retrieveWebNode).
		AddNode("retrieve_both", graph.NodeTypeTask, m.retrieveBothNode).
		AddNode("fuse", graph.NodeTypeTask, m.fuseNode).
		AddNode("finish", graph.NodeTypeEnd, func(_ context.Context, s graph.State) (graph.State, error) {
			return s, nil
		}).
		AddEdge("prepare", "route").
		AddEdge("retrieve_none", "fuse").
		AddEdge("retrieve_pdf", "fuse").
		AddEdge("retrieve_web", "fuse").
		AddEdge("retrieve_both", "fuse").
		AddEdge("fuse", "finish").
		Build()
}

func turnFrom(s graph.State) *turnState {
	ts, _ := s[stateKey].(*turnState)
	return ts
}

func (m *Machine) prepareNode(ctx context.Context, s graph.State) (graph.State, error) {
	ts := turnFrom(s)
	if !ts.UseRAG {
		ts.Decision = Decision{Route: RouteNone, ByRule: true}
		return s, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "hybrid.route")
	ts.Decision = m.router.Decide(ctx, ts.Query, m.retriever.IndexSize(ctx))
	telemetry.End(span, nil)

	m.logger.Debug("route decided", "route", ts.Decision.Route, "by_rule", ts.Decision.ByRule)
	return s, nil
}

func (m *Machine) routeCondition(_ context.Context, s graph.State) (string, error) {
	return string(turnFrom(s).Decision.Route), nil
}

func (m *Machine) retrieveNoneNode(_ context.Context, s graph.State) (graph.State, error) {
	return s, nil
}

func (m *Machine) retrievePDFNode(ctx context.Context, s graph.State) (graph.State, error) {
	ts := turnFrom(s)
	ctx, span := telemetry.Tracer().Start(ctx, "hybrid.retrieve_pdf")
	ts.PDF = m.retriever.SearchPDF(ctx, ts.Query)
	telemetry.End(span, nil)
	return s, nil
}

func (m *Machine) retrieveWebNode(ctx context.Context, s graph.State) (graph.State, error) {
	ts := turnFrom(s)
	ctx, span := telemetry.Tracer().Start(ctx, "hybrid.retrieve_web")
	ts.Web = m.retriever.SearchWeb(ctx, ts.Query, ts.Decision.Recency)
	telemetry.End(span, nil)
	return s, nil
}

func (m *Machine) retrieveBothNode(ctx context.Context, s graph.State) (graph.State, error) {
	ts := turnFrom(s)
	ctx, span := telemetry.Tracer().Start(ctx, "hybrid.retrieve_both")
	ts.PDF, ts.Web = m.retriever.SearchBoth(ctx, ts.Query, ts.Decision.Recency)
	telemetry.End(span, nil)
	return s, nil
}

func (m *Machine) fuseNode(_ context.Context, s graph.State) (graph.State, error) {
	ts := turnFrom(s)
	ts.Context = Fuse(ts.PDF, ts.Web, m.contextBudget)
	return s, nil
}

// Answer resolves the session and returns the turn's event stream. The
// stream obeys the ordering contract: chunk events, one sources event,
// then done; failures terminate the stream with a single error event and
// leave the session history untouched.
func (m *Machine) Answer(ctx context.Context, req *TurnRequest) (*Turn, error) {
	if req == nil || req.Message == "" {
		return nil, fmt.Errorf("empty message")
	}

	sess, err := m.sessions.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	turn := &Turn{SessionID: sess.ID}
	turn.Events = func(yield func(*Event) bool) {
		m.run(ctx, sess.ID, req, yield)
	}
	return turn, nil
}

func (m *Machine) run(ctx context.Context, sessionID string, req *TurnRequest, yield func(*Event) bool) {
	ctx, cancel := context.WithTimeout(ctx, m.turnDeadline)
	defer cancel()

	// Turns on one session run strictly one after another so each turn
	// sees the previous turn's history and appends land in order.
	release, err := m.sessions.AcquireTurn(ctx, sessionID)
	if err != nil {
		m.logger.Error("turn slot unavailable", "session", sessionID, "error", err)
		yield(errorEvent("the assistant could not process this question, please try again"))
		return
	}
	defer release()

	ts := &turnState{Query: req.Message, UseRAG: req.UseRAG}
	if _, err := m.flow.Execute(ctx, graph.State{stateKey: ts}); err != nil {
		m.logger.Error("retrieval flow failed", "error", err)
		yield(errorEvent("the assistant could not process this question, please try again"))
		return
	}

	history, err := m.sessions.History(ctx, sessionID, m.maxHistory)
	if err != nil {
		m.logger.Error("history lookup failed", "session", sessionID, "error", err)
		yield(errorEvent("the assistant could not process this question, please try again"))
		return
	}

	llmReq := buildRequest(ts.Decision.Route, ts.Context, history, req.Message, m.temperature)

	genCtx, span := telemetry.Tracer().Start(ctx, "hybrid.generate")
	var answer []byte
	emitted := false
	for delta, err := range m.generator.GenerateStream(genCtx, llmReq) {
		if err != nil {
			telemetry.End(span, err)
			if emitted {
				m.logger.Error("generation interrupted mid-stream", "session", sessionID, "error", err)
				yield(errorEvent("answer generation was interrupted, please try again"))
			} else {
				m.logger.Error("generation unavailable", "session", sessionID, "error", err)
				yield(errorEvent("answer generation is currently unavailable, please try again"))
			}
			return
		}
		if delta == "" {
			continue
		}
		if !yield(chunkEvent(delta)) {
			telemetry.End(span, ctx.Err())
			return
		}
		emitted = true
		answer = append(answer, delta...)
	}
	telemetry.End(span, nil)

	if !emitted {
		m.logger.Error("generator produced no output", "session", sessionID)
		yield(errorEvent("answer generation is currently unavailable, please try again"))
		return
	}

	if !yield(sourcesEvent(m.buildSources(ts))) {
		return
	}

	userMsg := message.NewMessage(message.RoleUser, req.Message)
	assistantMsg := message.NewMessage(message.RoleAssistant, string(answer))
	if err := m.sessions.AppendTurn(ctx, sessionID, userMsg, assistantMsg); err != nil {
		m.logger.Error("failed to persist turn", "session", sessionID, "error", err)
	}

	yield(doneEvent())
}

func (m *Machine) buildSources(ts *turnState) *Sources {
	s := &Sources{
		PDFSources: make([]PDFSource, 0, len(ts.PDF)),
		WebSources: ts.Web,
		RouteUsed:  string(ts.Decision.Route),
	}
	if s.WebSources == nil {
		s.WebSources = []websearch.Result{}
	}
	for _, res := range ts.PDF {
		s.PDFSources = append(s.PDFSources, PDFSource{
			Content:  res.Text,
			Metadata: res.Metadata,
			Score:    res.Score,
		})
	}
	return s
}
