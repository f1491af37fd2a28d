// Package gcd implements the global capabilities directory that local
// directories replicate GLOBAL providers to.
//
// Directory holds the directory semantics (per-gbid registrations, address
// rewriting, touch and stale removal) on top of a Storage. The memory
// storage is built in; the redis and consul subpackages register their
// storages with RegisterFactory when imported:
//
//	import _ "github.com/kbukum/capdir/gcd/redis"
//
//	gd, err := gcd.New(cfg, &redisCfg, log)
package gcd
