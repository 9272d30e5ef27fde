package network

// Wire protocol: every server-to-client frame is either a FEN string or an
// error line with the prefix below; every client-to-server frame is a single
// move in coordinate notation.

const ErrorPrefix = "error:"

// MalformedMoveMessage reports input that did not parse as coordinate notation.
func MalformedMoveMessage(raw string) string {
	return ErrorPrefix + "Invalid UCI format " + raw
}

// IllegalMoveMessage reports a parsed move that chess rules reject.
func IllegalMoveMessage(raw string) string {
	return ErrorPrefix + "Invalid move " + raw
}
