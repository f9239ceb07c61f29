package container

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testWidget struct {
	Val int
}

type testDoodad struct {
	Val string
}

func TestKey_Equality(t *testing.T) {
	assert.Equal(t, KeyOf[*testWidget](), KeyOf[*testWidget]())
	assert.Equal(t, KeyOf[*testWidget]().Named("a"), KeyOf[*testWidget]().Named("a"))

	assert.NotEqual(t, KeyOf[*testWidget](), KeyOf[*testDoodad]())
	assert.NotEqual(t, KeyOf[*testWidget](), KeyOf[testWidget]())
	assert.NotEqual(t, KeyOf[*testWidget]().Named("a"), KeyOf[*testWidget]().Named("b"))
	assert.NotEqual(t, KeyOf[*testWidget](), KeyOf[*testWidget]().Named("a"))
}

func TestKey_MapKey(t *testing.T) {
	m := map[Key]int{
		KeyOf[*testWidget]():            1,
		KeyOf[*testWidget]().Named("x"): 2,
		KeyOf[io.Reader]():              3,
	}

	assert.Equal(t, 1, m[KeyFor(KeyOf[*testWidget]().Type())])
	assert.Equal(t, 2, m[KeyOf[*testWidget]().Named("x")])
	assert.Equal(t, 3, m[KeyOf[io.Reader]()])
	assert.Len(t, m, 3)
}

func TestKey_NamedReturnsCopy(t *testing.T) {
	base := KeyOf[*testWidget]()
	named := base.Named("primary")

	assert.Equal(t, "", base.Qualifier())
	assert.Equal(t, "primary", named.Qualifier())
	assert.Equal(t, base.Type(), named.Type())
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "*container.testWidget", KeyOf[*testWidget]().String())
	assert.Equal(t, "*container.testWidget@primary", KeyOf[*testWidget]().Named("primary").String())
	assert.True(t, Key{}.IsZero())
	assert.False(t, KeyOf[int]().IsZero())
}
