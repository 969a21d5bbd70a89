// Package design computes biquad coefficients for the enhancement chain.
//
// The designs follow the RBJ Audio EQ Cookbook. Constructors validate their
// arguments and return an error instead of clamping: a frequency at or above
// Nyquist or a non-positive Q is a configuration mistake the caller must fix,
// not a value to guess around.
package design
