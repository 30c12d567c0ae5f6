// Package ui provides terminal output helpers shared by the pgai CLI and the
// interactive console.
//
// # Components Overview
//
//	Spinner         - Animated status line for a single request (CLI)
//	NewBubbleSpinner - Spinner model embedded in Bubble Tea programs
//	NewTable         - Styled bubbles table; RenderSimpleTable for static output
//	RenderKeyValues  - Aligned detail blocks (server, report)
//	StatusBadge      - Server status (ok, down, unknown)
//	RiskBadge        - Recommendation risk (low, medium, high)
//
// # Color Scheme
//
// Colors are ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - ok servers, low risk, success notices
//	ColorError     (red)    - down servers, high risk, failures
//	ColorWarning   (yellow) - medium risk
//	ColorInfo      (cyan)   - informational messages
//	ColorMuted     (gray)   - secondary text, unknown status
//
// ConfigureColors applies the output.color setting; DisableColors forces
// monochrome output for --no-color.
package ui
