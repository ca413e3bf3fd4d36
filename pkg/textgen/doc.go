/*
Package textgen provides the core pipeline for character-level text
generation: corpus loading, vocabulary construction, sliding-window
extraction, one-hot encoding, temperature-based sampling, and the
generation loop itself.

The pipeline is model-agnostic. A Predictor is any collaborator that maps
an encoded window to a probability distribution over the vocabulary; this
repository ships a database-backed n-gram implementation in pkg/ngram, but
a neural network behind the same interface works identically.

Windows, encodings, and distributions follow one shape contract throughout:
a window of length L over a vocabulary of size V encodes to an (L, V)
one-hot matrix, and a prediction for it is a length-V distribution.
*/
package textgen
