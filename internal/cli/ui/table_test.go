package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "NAME", "TYPE")
	table.AddRow("rig1", "rigging.Rig")
	table.AddRow("fk_arm", "rigging.FK", "extra")
	table.AddRow("solo")
	table.Render()

	want := "NAME    TYPE\n" +
		"──────  ───────────\n" +
		"rig1    rigging.Rig\n" +
		"fk_arm  rigging.FK\n" +
		"solo\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 3, table.Len())
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true)
	table.AddRow("x")
	table.Render()
	assert.Empty(t, buf.String())
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Type", "rigging.Actor")
	kv.AddRow("Version", "2")
	kv.Render()

	assert.Equal(t, "Type:    rigging.Actor\nVersion: 2\n", buf.String())
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "Types", true)
	assert.Equal(t, "Types\n─────\n", buf.String())
}
