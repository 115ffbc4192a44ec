//go:build scanforge_java_only

package mode

// compiledSupport for java-only binaries. This tag wins if both restriction
// tags are set.
var compiledSupport = Support{Java: true}
