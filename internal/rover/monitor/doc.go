// Package monitor renders mission progress for humans: PNG plots written at
// the end of a run and a small HTTP server with go-echarts debug charts and a
// JSON status endpoint.
package monitor
