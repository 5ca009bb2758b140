package symbol

import (
	"testing"

	"github.com/dekarrin/gentab/internal/gtberr"
	"github.com/stretchr/testify/assert"
)

func Test_Table_Add_DuplicateRejected(t *testing.T) {
	assert := assert.New(t)

	tbl := NewTable()
	assert.NoError(tbl.Add(Terminal{Name: "NUM"}))

	err := tbl.Add(Terminal{Name: "NUM"})
	assert.Error(err)
}

func Test_Table_Names_PreservesDeclarationOrder(t *testing.T) {
	assert := assert.New(t)

	tbl := NewTable()
	assert.NoError(tbl.Add(Terminal{Name: "C"}))
	assert.NoError(tbl.Add(Terminal{Name: "A"}))
	assert.NoError(tbl.Add(Terminal{Name: "B"}))

	assert.Equal([]string{"C", "A", "B"}, tbl.Names())
	assert.Equal(3, tbl.Len())
}

func Test_Table_Error_And_EOF(t *testing.T) {
	assert := assert.New(t)

	tbl := NewTable()
	assert.NoError(tbl.Add(Terminal{Name: "NUM"}))
	assert.NoError(tbl.Add(Terminal{Name: "ERR", IsError: true}))
	assert.NoError(tbl.Add(Terminal{Name: "EOF", IsEOF: true}))

	assert.Equal("ERR", tbl.Error().Name)
	assert.Equal("EOF", tbl.EOF().Name)
}

func Test_Table_Validate_RejectsMultipleErrorTerminals(t *testing.T) {
	assert := assert.New(t)

	tbl := NewTable()
	assert.NoError(tbl.Add(Terminal{Name: "ERR1", IsError: true, Loc: gtberr.Location{Line: 1}}))
	assert.NoError(tbl.Add(Terminal{Name: "ERR2", IsError: true, Loc: gtberr.Location{Line: 2}}))

	assert.Error(tbl.Validate())
}

func Test_Table_Validate_RejectsMultipleEOFTerminals(t *testing.T) {
	assert := assert.New(t)

	tbl := NewTable()
	assert.NoError(tbl.Add(Terminal{Name: "EOF1", IsEOF: true}))
	assert.NoError(tbl.Add(Terminal{Name: "EOF2", IsEOF: true}))

	assert.Error(tbl.Validate())
}

func Test_Table_Validate_OK(t *testing.T) {
	assert := assert.New(t)

	tbl := NewTable()
	assert.NoError(tbl.Add(Terminal{Name: "NUM"}))
	assert.NoError(tbl.Add(Terminal{Name: "ERR", IsError: true}))

	assert.NoError(tbl.Validate())
}

func Test_Table_AssignValues_RespectsExplicitValues(t *testing.T) {
	assert := assert.New(t)

	tbl := NewTable()
	assert.NoError(tbl.Add(Terminal{Name: "A", Value: 5, HasValue: true}))
	assert.NoError(tbl.Add(Terminal{Name: "B"}))
	assert.NoError(tbl.Add(Terminal{Name: "C"}))

	assert.NoError(tbl.AssignValues())

	assert.Equal(5, tbl.Get("A").Value)
	// B and C get the smallest unused non-negative integers, skipping 5.
	assert.Equal(0, tbl.Get("B").Value)
	assert.Equal(1, tbl.Get("C").Value)
}

func Test_Table_AssignValues_RejectsDuplicateExplicitValues(t *testing.T) {
	assert := assert.New(t)

	tbl := NewTable()
	assert.NoError(tbl.Add(Terminal{Name: "A", Value: 3, HasValue: true}))
	assert.NoError(tbl.Add(Terminal{Name: "B", Value: 3, HasValue: true}))

	assert.Error(tbl.AssignValues())
}

func Test_Table_Get_UnknownReturnsNil(t *testing.T) {
	assert := assert.New(t)

	tbl := NewTable()
	assert.Nil(tbl.Get("NOPE"))
}
