package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the identity
// token of the calling profile.
const AccessTokenHeaderName = "access_token"
