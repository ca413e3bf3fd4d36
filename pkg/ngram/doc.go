/*
Package ngram implements a database-backed character n-gram model that
satisfies the textgen.Predictor interface.

Models live in SQLite: each one stores its sorted character vocabulary, the
fixed-length contexts observed in its training corpus, and the frequency of
every context-to-character transition. Training slides a window across a
corpus and accumulates counts; prediction normalizes the stored frequencies
of a context into a probability distribution, optionally smoothed so unseen
characters stay reachable.

The package supports multiple models in one database, incremental training,
pruning of rare transitions, usage statistics, and portable JSON export and
import.
*/
package ngram
