// Package api exposes the directory over HTTP.
//
//	POST   /v1/providers?await=&gbids=           add a provider
//	POST   /v1/providers/all?await=              add a provider to every backend
//	DELETE /v1/providers/:participantId?gbids=&strict=
//	GET    /v1/lookup?domain=&interface=&scope=&cacheMaxAgeMs=&discoveryTimeoutMs=&onChange=&gbids=
//	GET    /v1/participants/:participantId?scope=&cacheMaxAgeMs=&discoveryTimeoutMs=&gbids=
//
// List parameters accept repeated keys and comma separated values. Errors
// are rendered as errors.ErrorResponse with the status of their code.
package api
