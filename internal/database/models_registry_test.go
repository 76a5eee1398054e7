package database

import (
	"testing"

	modelspkg "github.com/rockymount114/City-Workflow/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_ParentsBeforeChildren(t *testing.T) {
	index := map[string]int{}
	for i, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.User:
			index["user"] = i
		case *modelspkg.Application:
			index["application"] = i
		case *modelspkg.ApplicationField:
			index["field"] = i
		case *modelspkg.ApplicationRequest:
			index["request"] = i
		case *modelspkg.ApprovalStep:
			index["step"] = i
		case *modelspkg.AuditLog:
			index["audit"] = i
		}
	}
	require.Len(t, index, 6, "PersistentModels should include every workflow model")
	require.Less(t, index["application"], index["field"])
	require.Less(t, index["user"], index["request"])
	require.Less(t, index["application"], index["request"])
	require.Less(t, index["request"], index["step"])
}
