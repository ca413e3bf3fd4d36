package textgen

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Predictor produces the probability distribution of the character following
// an encoded window. The window arrives as the (L, V) one-hot matrix an
// Encoder produces, a batch of one, and the returned Distribution must have
// exactly one entry per vocabulary index.
//
// This package supplies the pipeline around a Predictor, not the model
// itself. Anything that honors the shape contract is substitutable: the
// n-gram models in pkg/ngram, a trained network, or a remote inference
// service.
type Predictor interface {
	Predict(ctx context.Context, window *mat.Dense) (Distribution, error)
}

// PredictorFunc adapts a plain function to the Predictor interface.
type PredictorFunc func(ctx context.Context, window *mat.Dense) (Distribution, error)

// Predict calls f.
func (f PredictorFunc) Predict(ctx context.Context, window *mat.Dense) (Distribution, error) {
	return f(ctx, window)
}
