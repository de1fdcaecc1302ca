package allocpool

import (
	"fmt"

	"braces.dev/errtrace"
	"golang.org/x/mod/semver"
	"golang.org/x/sys/cpu"

	"github.com/kolkov/allocpool/internal/pool/aba"
	"github.com/kolkov/allocpool/internal/pool/global"
)

// Version information for allocpool.
const (
	// Version is the current release, in semantic version form.
	Version = "v0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info describes the running configuration.
type Info struct {
	// Version is the library version.
	Version string

	// Strategy is the ABA protection compiled in: tagged, boxed or plain.
	Strategy string

	// Config is the configuration announcement, for example
	// "allocpool tagged quar+paat=1048576".
	Config string

	// DoubleWordCAS reports whether the CPU offers a double-word
	// compare-and-swap (CMPXCHG16B on amd64, LSE CASP on arm64).
	DoubleWordCAS bool
}

// GetInfo returns information about the pool.
//
// Example:
//
//	info := allocpool.GetInfo()
//	fmt.Printf("%s (%s)\n", info.Config, info.Version)
func GetInfo() Info {
	cfg := global.Current().Config()
	return Info{
		Version:       Version,
		Strategy:      aba.Strategy,
		Config:        cfg.Describe(),
		DoubleWordCAS: cpu.X86.HasCX16 || cpu.ARM64.HasATOMICS,
	}
}

// RequireVersion returns an error if this library is older than minimum,
// which must be a semantic version such as "v0.1.0".
func RequireVersion(minimum string) error {
	if !semver.IsValid(minimum) {
		return errtrace.Wrap(fmt.Errorf("allocpool: invalid version %q", minimum))
	}
	if semver.Compare(Version, minimum) < 0 {
		return errtrace.Wrap(fmt.Errorf("allocpool: version %s is older than required %s", Version, minimum))
	}
	return nil
}
