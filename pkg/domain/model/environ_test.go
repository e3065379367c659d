package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
)

func TestEnviron(t *testing.T) {
	t.Run("append to empty has no leading separator", func(t *testing.T) {
		env := model.NewEnviron()
		env.Append("P", "/x")
		v, ok := env.Get("P")
		gt.True(t, ok)
		gt.Equal(t, "/x", v)
	})

	t.Run("remove deletes every occurrence", func(t *testing.T) {
		env := model.NewEnviron()
		env.Set("P", "/a:/b:/a:/c")
		env.Remove("P", "/a")
		v, _ := env.Get("P")
		gt.Equal(t, "/b:/c", v)
	})

	t.Run("remove on unset is a no-op", func(t *testing.T) {
		env := model.NewEnviron()
		env.Remove("P", "/a")
		_, ok := env.Get("P")
		gt.False(t, ok)
	})

	t.Run("snapshot is sorted KEY=VALUE", func(t *testing.T) {
		env := model.NewEnviron()
		env.Set("B", "2")
		env.Set("A", "1")
		gt.Equal(t, []string{"A=1", "B=2"}, env.Snapshot())
	})

	t.Run("unset removes the variable", func(t *testing.T) {
		env := model.NewEnviron()
		env.Set("A", "1")
		env.Unset("A")
		_, ok := env.Get("A")
		gt.False(t, ok)
	})
}

func TestValidateHookName(t *testing.T) {
	gt.NoError(t, model.ValidateHookName("begin"))
	gt.NoError(t, model.ValidateHookName("build-2"))
	gt.Error(t, model.ValidateHookName(""))
	gt.Error(t, model.ValidateHookName("bad name"))
	gt.Error(t, model.ValidateHookName("1start"))
}
