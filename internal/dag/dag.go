// Package dag verifies a pipeline's task dependency graph is actually a DAG before the shepherd
// ever starts a run, so a cyclic depends_on configuration fails fast instead of deadlocking task
// monitors that wait on each other forever.
package dag

import "errors"

type DAG map[string]Node

type Node struct {
	ID    string
	Edges []Node
}

var (
	// ErrEntityNotFound is returned when a certain entity could not be located.
	ErrEntityNotFound = errors.New("dag: entity not found")

	// ErrEntityExists is returned when a certain entity was located but not meant to be.
	ErrEntityExists = errors.New("dag: entity already exists")

	// ErrEdgeCreatesCycle is returned when the introduction of an edge would create a cycle.
	ErrEdgeCreatesCycle = errors.New("dag: edge would create a cycle")
)

func New() DAG {
	return map[string]Node{}
}

func (dag DAG) AddNode(id string) error {
	if _, exists := dag[id]; exists {
		return ErrEntityExists
	}

	dag[id] = Node{ID: id}
	return nil
}

// AddEdge records that "from" depends on "to" (from waits on to). Rejects the edge if it would
// create a cycle.
func (dag DAG) AddEdge(from, to string) error {
	if _, exists := dag[from]; !exists {
		return ErrEntityNotFound
	}

	if _, exists := dag[to]; !exists {
		return ErrEntityNotFound
	}

	if dag.isCyclic(from, to) {
		return ErrEdgeCreatesCycle
	}

	node := dag[from]
	node.Edges = append(node.Edges, dag[to])
	dag[from] = node
	return nil
}

func (dag DAG) Exists(id string) bool {
	_, exists := dag[id]
	return exists
}

func (dag DAG) Edges(id string) ([]Node, error) {
	if _, exists := dag[id]; !exists {
		return nil, ErrEntityNotFound
	}
	return dag[id].Edges, nil
}

func (dag DAG) isCyclic(node1, node2 string) bool {
	if _, exists := dag[node1]; !exists {
		return false
	}

	if _, exists := dag[node2]; !exists {
		return false
	}

	if node1 == node2 {
		return true
	}

	for _, node := range dag[node2].Edges {
		if node.ID == dag[node1].ID {
			return true
		}

		node2 = node.ID
		if dag.isCyclic(node1, node2) {
			return true
		}
	}

	return false
}

// FromTasks builds a DAG from a pipeline's task ids and their dependsOn parent sets, returning
// ErrEntityNotFound if a task depends on a parent outside the set and ErrEdgeCreatesCycle on the
// first dependency edge that would introduce a cycle.
func FromTasks(taskIDs []string, dependsOn map[string][]string) (DAG, error) {
	graph := New()

	for _, id := range taskIDs {
		if err := graph.AddNode(id); err != nil {
			return nil, err
		}
	}

	for id, parents := range dependsOn {
		for _, parent := range parents {
			if err := graph.AddEdge(id, parent); err != nil {
				return nil, err
			}
		}
	}

	return graph, nil
}
