package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/plantsight/pipevalidation/validation"
)

// filePipelineSource serves the model's pipeline topology from a JSON
// file: an array of {id, pipes} objects. A development stand-in for the
// external topology query.
type filePipelineSource struct {
	path string
}

func (s *filePipelineSource) GetPipelines(ctx context.Context, modelID string) ([]validation.Pipeline, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipelines file: %w", err)
	}
	var pipelines []validation.Pipeline
	if err := json.Unmarshal(data, &pipelines); err != nil {
		return nil, fmt.Errorf("invalid pipelines file %s: %w", s.path, err)
	}
	return pipelines, nil
}

// emptyPipelineSource reports no pipelines; results still render, they
// just contribute nothing to highlighting.
type emptyPipelineSource struct{}

func (emptyPipelineSource) GetPipelines(ctx context.Context, modelID string) ([]validation.Pipeline, error) {
	return nil, nil
}
