//go:build windows

package preflight

// platformValidateMountPoint is a no-op on Windows; drive letters make ghost
// mount points a Unix-specific failure mode.
func platformValidateMountPoint(path string) error {
	return nil
}
