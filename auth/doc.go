// Package auth carries the identity of a provider registering with the
// directory.
//
// A provider presents a bearer token signed by the deployment's issuer. The
// token is parsed by the jwt subpackage into Claims, which are stored in the
// request context with authctx and read by the access controller in acl.
//
//	svc, err := jwt.NewService(&cfg.JWT, auth.NewClaims)
//	claims, err := svc.Parse(token)
//	ctx = authctx.Set(ctx, claims)
package auth
