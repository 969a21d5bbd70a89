// Package dynamics provides the level compressor used by the enhancement
// chain.
//
// Compressor is a mono soft-knee compressor with log2-domain gain
// computation. The quadratic knee keeps the gain curve smooth around the
// threshold, which matters for speech: a hard knee pumps audibly when the
// level hovers near the threshold. Parameter setters only touch cached
// coefficients, so retuning a running compressor never disturbs its
// envelope state.
package dynamics
