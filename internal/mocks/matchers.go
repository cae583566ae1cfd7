package mocks

import (
	"github.com/richardliu001/board-service/internal/model"
	"go.uber.org/mock/gomock"
)

// ConnectionID matches a model.Connection argument by its id.
func ConnectionID(id string) gomock.Matcher { return connectionID(id) }

type connectionID string

func (m connectionID) Matches(x any) bool {
	c, ok := x.(model.Connection)
	return ok && c.ConnectionID == string(m)
}

func (m connectionID) String() string { return "is connection " + string(m) }
