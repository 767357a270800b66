// Package client contains Cobra CLI commands that talk to a running
// dp1-feed server over its HTTP API.
package client
