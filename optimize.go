package dataflow

import (
	"fmt"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/models"
)

// optimize rewrites spec bottom-up. After its children are optimized, a
// node whose step implements models.Folder may replace itself
func optimize(spec models.Spec, id string) (models.Spec, error) {
	step, children, err := builder.CreateStep(spec)
	if err != nil {
		return models.Spec{}, fmt.Errorf("node %s (%s): %w", id, spec.Variant, err)
	}
	if len(children) == 0 {
		return spec, nil
	}

	optimized := make([]models.Spec, len(children))
	for i, child := range children {
		res, err := optimize(child, childID(id, i))
		if err != nil {
			return models.Spec{}, err
		}
		optimized[i] = res
	}
	spec = spec.WithChildren(optimized)

	if folder, ok := step.(models.Folder); ok {
		if folded, ok := folder.Fold(optimized); ok {
			return folded, nil
		}
	}
	return spec, nil
}
