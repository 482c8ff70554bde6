package check

import (
	"testing"

	"gotest.tools/assert"
)

type pointerReceiver struct {
	A bool
}

func (t *pointerReceiver) Validate() []error {
	return []error{
		True(t.A, "field A must be true"),
	}
}

type valueReceiver struct {
	A bool
}

func (t valueReceiver) Validate() []error {
	return []error{
		True(t.A, "field A must be true"),
	}
}

type nested struct {
	Inner []valueReceiver
	Named map[string]*pointerReceiver
}

func TestMethodSets(t *testing.T) {
	case1 := pointerReceiver{A: false}
	case2 := valueReceiver{A: false}
	expected := "root: field A must be true: expected true, got false"
	assert.ErrorContains(t, Validate(case1), expected)
	assert.ErrorContains(t, Validate(&case1), expected)
	assert.ErrorContains(t, Validate(case2), expected)
	assert.ErrorContains(t, Validate(&case2), expected)
}

func TestValidateWalksContainers(t *testing.T) {
	v := nested{
		Inner: []valueReceiver{{A: true}, {A: false}},
		Named: map[string]*pointerReceiver{"x": {A: false}, "y": nil},
	}
	err := Validate(v)
	assert.ErrorContains(t, err, "2 validation errors")
	assert.ErrorContains(t, err, "root.Inner[1]")
	assert.ErrorContains(t, err, "root.Named[x]")
}

func TestValidateOK(t *testing.T) {
	assert.NilError(t, Validate(valueReceiver{A: true}))
}

func TestChecks(t *testing.T) {
	assert.NilError(t, GreaterThan(2, 1))
	assert.ErrorContains(t, GreaterThan(1, 1, "cores"), "cores: 1 is not greater than 1")
	assert.NilError(t, GreaterThanOrEqualTo(1, 1))
	assert.ErrorContains(t, NotEmpty("", "name"), "name")
	assert.NilError(t, Contains("best", []interface{}{"best", "first"}))
	assert.ErrorContains(t, Contains("worst", []interface{}{"best"}, "policy"), "policy")
	assert.NilError(t, False(false))
	assert.ErrorContains(t, True(false, "host %s is off", "n1"), "host n1 is off")
}

func TestPanic(t *testing.T) {
	Panic(nil)
	defer func() {
		assert.Assert(t, recover() != nil)
	}()
	Panic(True(false, "boom"))
}
