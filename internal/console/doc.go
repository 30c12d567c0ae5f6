// Package console is the interactive Bubble Tea front end for pgai.
//
// The model renders the server table from a registry snapshot, expands one
// server into its database and block options, and shows the open report in
// a scrollable viewport. Every remote call runs as a tea.Cmd and comes back
// as a message; failures become a one-line notice in the footer.
package console
