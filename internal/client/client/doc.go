// Package client is the transport adapter between the field engine and the
// remote backend's REST API.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) with generic
//     Create, Update, Query, UploadAttachment and DescribeChoiceField
//     operations.
//  2. A net/http implementation (see HTTPClient) that obtains a bearer token
//     from an Authenticator before every call, bounds each request with a
//     fixed timeout and optionally throttles outgoing requests.
//  3. Explicit payload structs for the objects the engine writes, and pure
//     mapping functions from decoded query rows to models.
//
// # Error Handling
//
// Non-2xx responses become *common.RemoteRejection carrying the status and
// the backend's error list; transport failures and timeouts become
// *common.NetworkError. Nothing is retried here: a 401 only invalidates the
// cached token so the next call re-authenticates. IsTransient classifies
// errors for callers deciding whether to fall back or retry later.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation.
package client
