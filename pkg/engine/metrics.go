package engine

import (
	"context"
	"os"

	"github.com/kisdma/data-workspaces-core/pkg/errors"
	"github.com/kisdma/data-workspaces-core/pkg/model"
	"github.com/kisdma/data-workspaces-core/pkg/resource"
	"go.uber.org/zap"
)

// harvestMetrics reads the metrics of a results resource, flattened with dotted keys
func (e *Engine) harvestMetrics(ctx context.Context, r resource.Results, into map[string]interface{}) {
	var doc struct {
		Metrics map[string]interface{} `json:"metrics"`
	}
	if err := r.ReadResultsFile(ctx, model.ResultsFile, &doc); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			e.l.Warn("cannot read metrics", zap.String("file", model.ResultsFile), zap.Error(err))
		}
		return
	}
	flatten("", doc.Metrics, into)
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
