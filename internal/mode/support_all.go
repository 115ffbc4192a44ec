//go:build !scanforge_clang_only && !scanforge_java_only

package mode

// compiledSupport covers every backend in the default build.
var compiledSupport = Support{Clang: true, Java: true}
