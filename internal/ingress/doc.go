// Package ingress accepts new uploads, creates their job records and hands
// them to the workflow manager without waiting for processing.
package ingress
