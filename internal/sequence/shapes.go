package sequence

import (
	"fmt"
	"strings"

	"floodcast/internal/types"
)

// ModelShape is the input/output contract of a trained model family.
type ModelShape struct {
	Features int
	Outputs  int
}

// knownShapes lists the feature and output counts the deployed models were
// trained with. Codes are matched case-insensitively.
var knownShapes = map[string]ModelShape{
	"DHOMPO_GRU":     {Features: 4, Outputs: 5},
	"DHOMPO_LSTM":    {Features: 4, Outputs: 5},
	"DHOMPO_TCN":     {Features: 4, Outputs: 5},
	"PURWODADI_GRU":  {Features: 3, Outputs: 3},
	"PURWODADI_LSTM": {Features: 3, Outputs: 3},
	"PURWODADI_TCN":  {Features: 3, Outputs: 3},
}

// LookupShape returns the registered shape for modelCode.
func LookupShape(modelCode string) (ModelShape, error) {
	shape, ok := knownShapes[strings.ToUpper(strings.TrimSpace(modelCode))]
	if !ok {
		return ModelShape{}, types.NewAppErrorWithDetails(
			types.ErrCodeUnknownModelRequirements,
			fmt.Sprintf("no feature configuration registered for model %q", modelCode),
			nil,
			map[string]any{"model_code": modelCode},
		)
	}
	return shape, nil
}
