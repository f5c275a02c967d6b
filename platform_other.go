//go:build !darwin

package evcompat

// maybeDisableKqueue is a no-op off Darwin; the kqueue breakage it guards
// against is specific to old macOS kernels.
func maybeDisableKqueue(*caps) {}
