// Package adminhttp serves the administrative security surface: secret status and
// forced rotation, token blacklisting and denylist cleanup, the permission matrix,
// and token refresh and logout.
//
// Every security route is guarded by [middleware.Guard]. Forced rotation is limited to
// the highest role. Error bodies are generic; causes are only logged.
package adminhttp
