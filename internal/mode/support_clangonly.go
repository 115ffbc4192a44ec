//go:build scanforge_clang_only && !scanforge_java_only

package mode

// compiledSupport for clang-only binaries.
var compiledSupport = Support{Clang: true}
