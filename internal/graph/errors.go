package graph

import "errors"

var (
	// ErrInvalidEdge indicates an edge with an unknown endpoint or a self-loop.
	ErrInvalidEdge = errors.New("invalid edge")
	// ErrUnknownUser indicates an ID that resolves to no known user record.
	ErrUnknownUser = errors.New("unknown user")
	// ErrSelfFollow indicates a follow or unfollow where both IDs are the same user.
	ErrSelfFollow = errors.New("users cannot follow themselves")
)
