// Package discoverytest provides recording fakes of the directory's
// collaborators for tests.
//
//	gcd := discoverytest.NewGlobalDirectory()
//	gcd.AddFunc = func(ctx context.Context, e discovery.GlobalDiscoveryEntry, ttl time.Duration, gbids []string) error {
//		return errors.Timeout("add")
//	}
package discoverytest
