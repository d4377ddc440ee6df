// Package main runs the letter recognition pipeline over a batch of images
// and reports per-stage throughput. The batch is either the EMNIST letters
// test split or reproducible synthetic images. With a labelled batch it also
// reports how often the predicted letter matches and how strongly the
// ensemble agreed.
package main
