// Package classify trains and evaluates the land-cover classifier and
// applies it to indexed composites.
//
// Responsibilities: the global train/test split, feature extraction at
// sample points, the three classifier families (random forest, RBF SVM,
// single CART tree), the confusion matrix with accuracy and kappa, and the
// model bound to its ordered feature bands.
// Key types: Algorithm, Model, BoundModel, Trainer, ConfusionMatrix, Report.
//
// Every algorithm is deterministic for a given input order and seed.
package classify
