// Package directory is the local capabilities directory.
//
// A Directory keeps the providers registered on this node in a
// store.LocalStore and replicates GLOBAL ones to the global directory
// through a single sequencer.Sequencer, so that add and remove calls for
// the same participant reach the remote side in submission order. Lookups
// combine local entries, a store.GlobalCache of remote entries and live
// remote lookups for the domains nothing local or cached covers.
//
// While started, three loops keep registrations alive: touch refreshes the
// GLOBAL entries remotely, re-add re-registers them and the expiry sweep
// drops expired entries from both stores. On start the directory also asks
// every backend to remove the registrations this cluster controller left
// behind in an earlier run.
//
//	d, err := directory.New(cfg, directory.Deps{GCD: client, Routing: table})
//	if err != nil {
//		return err
//	}
//	return registry.Register(d)
package directory
