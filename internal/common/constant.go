package common

// AuthorizationHeaderName carries the bearer token issued by the auth provider.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// AccessCodeSize is the number of random bytes behind a guest access code.
const AccessCodeSize = 6
