package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notas/core"
)

func TestRollbarLogger_output(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(zerolog.New(&buf), core.NewTestConfig())
	logger.Enable(false)

	actor := core.Actor{ID: "p-1", Email: "ada@test.co", Role: core.RoleTeacher}
	logger.Error("saving grades", errors.New("boom"), map[string]interface{}{"class_id": "c-1"}, actor)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "saving grades", entry["message"])
	assert.Equal(t, "p-1", entry["actor_id"])
	assert.Equal(t, "teacher", entry["actor_role"])
	assert.Equal(t, "c-1", entry["class_id"])
	assert.Contains(t, entry["error"], "boom")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := NewRollbarLogger(zerolog.Nop(), core.NewTestConfig())
	logger.Enable(false)

	first := core.Actor{ID: "1", Role: core.RoleStudent}
	second := core.Actor{ID: "2", Role: core.RoleTeacher}
	rbArgs, actor := logger.prepare("msg", []interface{}{first, "extra", second})
	require.NotNil(t, actor)
	assert.Equal(t, "1", actor.ID)
	assert.Equal(t, []interface{}{"msg", "extra"}, rbArgs)

	_, actor = logger.prepare("msg", nil)
	assert.Nil(t, actor)
}
