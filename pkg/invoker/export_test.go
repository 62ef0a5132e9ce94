package invoker

import "github.com/calvinalkan/udstore/pkg/userdata"

// Export internal state for tests. This file is only compiled during tests.

// TableForTesting returns the memoized method table currently stored for
// host, or nil if none has been compiled yet. Comparing two returned values
// with == checks whether the same compilation is being reused.
func TableForTesting(c *Cache, host any) any {
	h, err := userdata.Bind(host)
	if err != nil {
		return nil
	}

	ms, ok := userdata.TryGet(h, c.slot)
	if !ok {
		return nil
	}

	return ms
}
