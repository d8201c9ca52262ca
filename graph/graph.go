// Package graph provides a small execution-flow engine. Nodes carry
// functions that transform a shared state; condition nodes pick the next
// branch from the state. The hybrid answering pipeline is expressed as
// one of these graphs.
package graph

import (
	"context"
	"fmt"
)

// NodeType classifies a node in the flow.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeCondition NodeType = "condition"
	NodeTypeTask      NodeType = "task"
)

// State is the mutable blackboard passed from node to node.
type State map[string]any

// NodeFunc runs a node and returns the (possibly replaced) state.
type NodeFunc func(context.Context, State) (State, error)

// ConditionFunc inspects the state and returns a branch label. The label
// is resolved to the next node through the node's NextMap.
type ConditionFunc func(context.Context, State) (string, error)

// Node is a single step in the flow.
type Node struct {
	Name           string
	Type           NodeType
	Execute        NodeFunc
	Condition      ConditionFunc     // condition nodes only
	NextNodes      []string          // outgoing edges
	NextMap        map[string]string // condition nodes: branch label -> node name
	WaitAllParents bool              // join node: run only after every parent reported in
}

// Graph is a set of named nodes with a designated start and end.
type Graph struct {
	nodes     map[string]*Node
	startNode string
	endNode   string
	maxVisits int
}

// NewGraph creates an empty graph. Nodes may be revisited up to
// maxVisits times before execution aborts with a loop error.
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		maxVisits: 10,
	}
}

func (g *Graph) validateNode(node *Node) {
	if node.Name == "" {
		panic("node name cannot be empty")
	}

	switch node.Type {
	case NodeTypeCondition:
		if node.Condition == nil {
			panic(fmt.Sprintf("condition node %s must have a Condition function", node.Name))
		}
	default:
		if node.Execute == nil {
			panic(fmt.Sprintf("node %s of type %s must have an Execute function", node.Name, node.Type))
		}
	}
}

// AddNode registers a node. Start and end nodes are picked up from the
// node type automatically.
func (g *Graph) AddNode(node *Node) {
	if _, exists := g.nodes[node.Name]; exists {
		panic(fmt.Sprintf("node %s already exists", node.Name))
	}

	g.validateNode(node)
	g.nodes[node.Name] = node

	if node.Type == NodeTypeStart {
		g.startNode = node.Name
	}
	if node.Type == NodeTypeEnd {
		g.endNode = node.Name
	}
}

func (n *Node) addNext(name string) {
	n.NextNodes = append(n.NextNodes, name)
}

func (n *Node) nextList() []string {
	if n == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var result []string
	for _, child := range n.NextNodes {
		if _, ok := seen[child]; ok {
			continue
		}
		seen[child] = struct{}{}
		result = append(result, child)
	}
	return result
}

// SetStartNode overrides the start node.
func (g *Graph) SetStartNode(name string) {
	if _, exists := g.nodes[name]; !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	g.startNode = name
}

// SetEndNode overrides the end node.
func (g *Graph) SetEndNode(name string) {
	if _, exists := g.nodes[name]; !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	g.endNode = name
}

// SetMaxVisits changes the revisit limit used for loop detection.
func (g *Graph) SetMaxVisits(maxVisits int) {
	g.maxVisits = maxVisits
}

// Execute walks the graph from the start node until the end node runs,
// threading the state through each node. Scheduling is breadth-first:
// after a node runs it signals every static child, marking the children
// it actually triggered. A join node (WaitAllParents) is enqueued only
// once all of its parents have reported and at least one triggered it,
// so a branch that was skipped cannot fire the join early.
func (g *Graph) Execute(ctx context.Context, initialState State) (State, error) {
	if g.startNode == "" {
		return nil, fmt.Errorf("start node not set")
	}

	state := initialState
	if state == nil {
		state = make(State)
	}

	expectedParents := g.buildParentCounts()
	completedParents := make(map[string]int)
	parentHits := make(map[string]int)
	awaiting := make(map[string]bool)
	visited := make(map[string]int)

	queue := []string{g.startNode}
	awaiting[g.startNode] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		awaiting[current] = false

		node, exists := g.nodes[current]
		if !exists {
			return nil, fmt.Errorf("node %s not found", current)
		}

		visited[current]++
		if visited[current] > g.maxVisits {
			return nil, fmt.Errorf("loop detected at node %s", current)
		}

		if node.Type == NodeTypeEnd {
			return node.Execute(ctx, state)
		}

		nextNodes, err := g.resolveNextNodes(ctx, node, state)
		if err != nil {
			return nil, err
		}

		allChildren := g.staticChildren(node)
		triggered := make(map[string]struct{}, len(nextNodes))

		for _, child := range nextNodes {
			triggered[child] = struct{}{}
			if err := g.signalChild(child, true, parentHits, completedParents, expectedParents, awaiting, &queue); err != nil {
				return nil, err
			}
		}
		for _, child := range allChildren {
			if _, ok := triggered[child]; ok {
				continue
			}
			if err := g.signalChild(child, false, parentHits, completedParents, expectedParents, awaiting, &queue); err != nil {
				return nil, err
			}
		}

		parentHits[current] = 0
		completedParents[current] = 0
	}

	return state, nil
}

func (g *Graph) resolveNextNodes(ctx context.Context, node *Node, state State) ([]string, error) {
	switch node.Type {
	case NodeTypeCondition:
		label, err := node.Condition(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("evaluating condition at node %s: %w", node.Name, err)
		}
		next := node.NextMap[label]
		if next == "" {
			return nil, fmt.Errorf("node %s has no branch for label %q", node.Name, label)
		}
		return []string{next}, nil
	default:
		var err error
		state, err = node.Execute(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("executing node %s: %w", node.Name, err)
		}
		next := node.nextList()
		if len(next) == 0 {
			return nil, fmt.Errorf("node %s has no outgoing edge", node.Name)
		}
		return next, nil
	}
}

func (g *Graph) signalChild(child string, participated bool, parentHits, completedParents, expectedParents map[string]int, awaiting map[string]bool, queue *[]string) error {
	target, exists := g.nodes[child]
	if !exists {
		return fmt.Errorf("node %s not found", child)
	}

	if target.WaitAllParents {
		if participated {
			parentHits[child]++
		}
		completedParents[child]++
		required := expectedParents[child]
		if required <= 0 {
			required = 1
		}
		if completedParents[child] < required || parentHits[child] == 0 || awaiting[child] {
			return nil
		}
		awaiting[child] = true
		*queue = append(*queue, child)
		return nil
	}

	if !participated {
		return nil
	}
	parentHits[child]++
	if awaiting[child] {
		return nil
	}
	awaiting[child] = true
	*queue = append(*queue, child)
	return nil
}

func (g *Graph) buildParentCounts() map[string]int {
	counts := make(map[string]int)
	for _, node := range g.nodes {
		for _, child := range g.staticChildren(node) {
			counts[child]++
		}
	}
	return counts
}

func (g *Graph) staticChildren(node *Node) []string {
	if node == nil {
		return nil
	}

	seen := make(map[string]struct{})
	add := func(out *[]string, name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		*out = append(*out, name)
	}

	var result []string
	if node.Type == NodeTypeCondition {
		for _, child := range node.NextMap {
			add(&result, child)
		}
	}
	for _, child := range node.NextNodes {
		add(&result, child)
	}
	return result
}

// GetNode looks up a node by name.
func (g *Graph) GetNode(name string) (*Node, error) {
	node, exists := g.nodes[name]
	if !exists {
		return nil, fmt.Errorf("node %s not found", name)
	}
	return node, nil
}

// Builder assembles a graph fluently.
type Builder struct {
	graph *Graph
}

// NewBuilder creates a builder around a fresh graph.
func NewBuilder() *Builder {
	return &Builder{graph: NewGraph()}
}

// AddNode adds a plain node.
func (b *Builder) AddNode(name string, nodeType NodeType, execute NodeFunc) *Builder {
	b.graph.AddNode(&Node{
		Name:    name,
		Type:    nodeType,
		Execute: execute,
	})
	return b
}

// AddConditionNode adds a branching node. nextMap maps the labels
// returned by condition to node names.
func (b *Builder) AddConditionNode(name string, condition ConditionFunc, nextMap map[string]string) *Builder {
	b.graph.AddNode(&Node{
		Name:      name,
		Type:      NodeTypeCondition,
		Condition: condition,
		NextMap:   nextMap,
	})
	return b
}

// AddEdge connects two nodes.
func (b *Builder) AddEdge(from, to string) *Builder {
	if node, exists := b.graph.nodes[from]; exists {
		node.addNext(to)
	}
	return b
}

// RequireAllParents marks a node as a join point.
func (b *Builder) RequireAllParents(name string) *Builder {
	node, exists := b.graph.nodes[name]
	if !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	node.WaitAllParents = true
	return b
}

// SetStart sets the start node.
func (b *Builder) SetStart(name string) *Builder {
	b.graph.SetStartNode(name)
	return b
}

// SetEnd sets the end node.
func (b *Builder) SetEnd(name string) *Builder {
	b.graph.SetEndNode(name)
	return b
}

// SetMaxVisits sets the loop-detection limit.
func (b *Builder) SetMaxVisits(maxVisits int) *Builder {
	b.graph.SetMaxVisits(maxVisits)
	return b
}

// Build returns the assembled graph.
func (b *Builder) Build() *Graph {
	return b.graph
}
