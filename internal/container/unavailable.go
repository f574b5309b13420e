package container

import (
	"context"
	"fmt"

	"finresearch/internal/errors"
	"finresearch/ports"
)

// Stand-ins for collaborators whose credentials are not configured. Runs
// that need them fail with COLLABORATOR_UNAVAILABLE; the rest still work.

type unavailableRetriever struct{ reason string }

func (u unavailableRetriever) Search(context.Context, string, int, ports.RetrievalFilter) ([]ports.Passage, error) {
	return nil, errors.CollaboratorUnavailable("document retrieval", fmt.Errorf("%s", u.reason))
}

type unavailableWeb struct{ reason string }

func (u unavailableWeb) Search(context.Context, ports.WebQuery) ([]ports.WebResult, error) {
	return nil, errors.CollaboratorUnavailable("web search", fmt.Errorf("%s", u.reason))
}
