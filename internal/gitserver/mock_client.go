package gitserver

import (
	"context"

	"github.com/gupsho/sourcegraph/internal/models"
)

// MockClient is a mock implementation of Client for testing.
type MockClient struct {
	// Tips stores the head commit per repository
	Tips map[string]string
	// Graphs stores the discoverable commit graph per repository
	Graphs map[string]models.CommitGraph
	// Err can be set to make methods return an error
	Err error
}

// NewMockClient creates a new MockClient for testing.
func NewMockClient() *MockClient {
	return &MockClient{
		Tips:   make(map[string]string),
		Graphs: make(map[string]models.CommitGraph),
	}
}

// SetTip sets the head commit for a repository.
func (m *MockClient) SetTip(repository, commit string) {
	m.Tips[repository] = commit
}

// AddCommit records a commit with its parents in a repository's graph.
func (m *MockClient) AddCommit(repository, commit string, parents ...string) {
	if m.Graphs[repository] == nil {
		m.Graphs[repository] = make(models.CommitGraph)
	}
	m.Graphs[repository].Add(commit, "")
	for _, parent := range parents {
		m.Graphs[repository].Add(commit, parent)
	}
}

// Head returns the configured tip, or empty if none.
func (m *MockClient) Head(_ context.Context, repository string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Tips[repository], nil
}

// CommitsNear returns the fragment reachable backward from the anchor within
// the configured graph.
func (m *MockClient) CommitsNear(_ context.Context, repository, commit string) (models.CommitGraph, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	full := m.Graphs[repository]
	fragment := make(models.CommitGraph)
	for ancestor := range full.Ancestors(commit) {
		if parents, ok := full[ancestor]; ok {
			fragment[ancestor] = make(map[string]bool, len(parents))
			for parent := range parents {
				fragment[ancestor][parent] = true
			}
		}
	}
	return fragment, nil
}
