package main

import "github.com/stationhouse/switchboard/internal/models"

// shortID returns the first 8 characters of an envelope or request id
// for compact display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// deliveryLabel collapses a journal row's success/degraded pair into one
// display label.
func deliveryLabel(d models.Delivery) string {
	switch {
	case d.Success && d.Degraded:
		return "degraded"
	case d.Success:
		return "ok"
	default:
		return "failed"
	}
}
