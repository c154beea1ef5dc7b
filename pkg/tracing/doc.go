/*
Package tracing keeps an OpenTelemetry tracer in a context.Context
instead of in a package global.
*/
package tracing
