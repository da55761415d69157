package classoracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOracleSeedsWellKnownAncestors(t *testing.T) {
	o := NewOracle()
	for _, d := range []string{"Ljava/lang/Object;", "Ljava/lang/Throwable;", "Ljava/lang/String;", "Ljava/lang/Class;"} {
		ref, err := o.Resolve(d)
		require.NoError(t, err, "resolving %s", d)
		assert.Equal(t, d, ref.Descriptor())
	}
}

func TestResolveUnregisteredDescriptor(t *testing.T) {
	o := NewOracle()
	_, err := o.Resolve("Lcom/example/Nowhere;")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolveMalformedDescriptor(t *testing.T) {
	o := NewOracle()
	for _, d := range []string{"", "com/example/Foo", "Lcom/example/Foo"} {
		_, err := o.Resolve(d)
		assert.ErrorIs(t, err, ErrMalformed, "descriptor %q", d)
	}
}

func TestRegisterAndExtends(t *testing.T) {
	o := NewOracle()
	o.Register("Lcom/example/Animal;", "Ljava/lang/Object;", false, nil, nil)
	o.Register("Lcom/example/Dog;", "Lcom/example/Animal;", false, nil, nil)

	dog, err := o.Resolve("Lcom/example/Dog;")
	require.NoError(t, err)
	animal, err := o.Resolve("Lcom/example/Animal;")
	require.NoError(t, err)
	object, err := o.Resolve("Ljava/lang/Object;")
	require.NoError(t, err)

	assert.True(t, dog.Extends(animal))
	assert.True(t, dog.Extends(object))
	assert.False(t, animal.Extends(dog))
}

func TestRegisterInterfaceImplements(t *testing.T) {
	o := NewOracle()
	o.Register("Lcom/example/Runnable;", "", true, nil, nil)
	o.Register("Lcom/example/Task;", "Ljava/lang/Object;", false, []string{"Lcom/example/Runnable;"}, nil)

	task, err := o.Resolve("Lcom/example/Task;")
	require.NoError(t, err)
	runnable, err := o.Resolve("Lcom/example/Runnable;")
	require.NoError(t, err)

	assert.True(t, task.Implements(runnable))
}

func TestResolveArrayDescriptor(t *testing.T) {
	o := NewOracle()

	prim, err := o.Resolve("[I")
	require.NoError(t, err)
	assert.True(t, prim.IsArray())
	assert.Equal(t, 1, prim.ArrayDimensions())

	nested, err := o.Resolve("[[Ljava/lang/Object;")
	require.NoError(t, err)
	assert.Equal(t, 2, nested.ArrayDimensions())
	assert.NotNil(t, nested.ImmediateElementClass())
	assert.Equal(t, "Ljava/lang/Object;", nested.BaseElementClass().Descriptor())
}

func TestCommonSuperclassOfSiblings(t *testing.T) {
	o := NewOracle()
	o.Register("Lcom/example/Animal;", "Ljava/lang/Object;", false, nil, nil)
	o.Register("Lcom/example/Dog;", "Lcom/example/Animal;", false, nil, nil)
	o.Register("Lcom/example/Cat;", "Lcom/example/Animal;", false, nil, nil)

	dog, err := o.Resolve("Lcom/example/Dog;")
	require.NoError(t, err)
	cat, err := o.Resolve("Lcom/example/Cat;")
	require.NoError(t, err)

	common := o.CommonSuperclass(dog, cat)
	require.NotNil(t, common)
	assert.Equal(t, "Lcom/example/Animal;", common.Descriptor())
}

func TestLoadClasspathBytes(t *testing.T) {
	o := NewOracle()
	data := []byte(`
classes:
  - descriptor: "Lcom/example/Base;"
    super: "Ljava/lang/Object;"
  - descriptor: "Lcom/example/Derived;"
    super: "Lcom/example/Base;"
    interfaces: ["Ljava/io/Serializable;"]
`)
	require.NoError(t, LoadClasspathBytes(o, data))

	derived, err := o.Resolve("Lcom/example/Derived;")
	require.NoError(t, err)
	base, err := o.Resolve("Lcom/example/Base;")
	require.NoError(t, err)
	serializable, err := o.Resolve("Ljava/io/Serializable;")
	require.NoError(t, err)

	assert.True(t, derived.Extends(base))
	assert.True(t, derived.Implements(serializable))
}

func TestLoadClasspathBytesMissingDescriptor(t *testing.T) {
	o := NewOracle()
	err := LoadClasspathBytes(o, []byte("classes:\n  - super: \"Ljava/lang/Object;\"\n"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnresolved), "should fail on the missing-descriptor check, not a resolution error")
}
