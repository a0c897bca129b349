// Package httpapi serves the account-security engine over JSON HTTP.
//
// Every route is assembled with middleware.Chain in the same order: client
// address, rate limit, credentials, handler. Error bodies are
// {"error": message} with the messages clients already depend on; see
// writeEngineError for the status mapping.
package httpapi
