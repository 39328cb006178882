package tlsprobe

import (
	"fmt"

	"tlsrig/internal/gate"
)

// Require checks whether the named TLS version is usable in this
// environment. An undefined or non-negotiable version yields a skip
// outcome — an environment limitation, not a defect. Probe infrastructure
// errors yield a failure.
func Require(version string) gate.Outcome {
	if _, ok := Defined(version); !ok {
		return gate.Skip(fmt.Sprintf("%s is not defined by the TLS library", version))
	}
	versions, err := SupportedVersions()
	if err != nil {
		return gate.Fail(err)
	}
	if !versions.Has(version) {
		return gate.Skip(fmt.Sprintf("test requires %s", version))
	}
	return gate.OK()
}

// RequireTLSv1 gates on TLSv1 being negotiable.
func RequireTLSv1() gate.Outcome { return Require(VersionTLS10Name) }

// RequireTLSv1_1 gates on TLSv1.1 being negotiable.
func RequireTLSv1_1() gate.Outcome { return Require(VersionTLS11Name) }

// RequireTLSv1_2 gates on TLSv1.2 being negotiable.
func RequireTLSv1_2() gate.Outcome { return Require(VersionTLS12Name) }

// RequireTLSv1_3 gates on TLSv1.3 being negotiable.
func RequireTLSv1_3() gate.Outcome { return Require(VersionTLS13Name) }
