package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/clubdesk/clubdesk/testing"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["create-admin"])
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "sideways"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sideways")
}

func TestCreateAdminRequiresFlags(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"create-admin", "--username", "root"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestMainSkipsStartupInTestMode(t *testing.T) {
	assert.NotPanics(t, main)
}
