package topology

import "errors"

var (
	ErrDuplicateNode      = errors.New("duplicate node")
	ErrDuplicateEdge      = errors.New("duplicate edge")
	ErrUnknownNode        = errors.New("unknown node")
	ErrInvalidProbability = errors.New("invalid probability")
	ErrSelfLoop           = errors.New("self loop")
)
