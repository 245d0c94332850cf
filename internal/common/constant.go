package common

// RequestIDHeaderName is the gRPC metadata key carrying the client-chosen
// request id. The server generates one when absent.
const RequestIDHeaderName = "x-request-id"
