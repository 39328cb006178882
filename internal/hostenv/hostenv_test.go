package hostenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoopbackHosts(t *testing.T) {
	hosts := LoopbackHosts()

	assert.Contains(t, hosts, LocalhostName)
	assert.Contains(t, hosts, IPv4Loopback)

	if HasIPv6() {
		assert.Contains(t, hosts, IPv6Loopback)
	} else {
		assert.NotContains(t, hosts, IPv6Loopback)
	}
}

func TestHasIPv6_Stable(t *testing.T) {
	// The probe runs once; repeated calls must agree.
	first := HasIPv6()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, HasIPv6())
	}
}
