package branchpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRoot(t *testing.T) {
	assert.True(t, IsRoot("MAIN"))
	assert.False(t, IsRoot("MAIN/A"))
	assert.False(t, IsRoot("main"))
}

func TestParent(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantParent string
		wantOK     bool
	}{
		{name: "root has no parent", path: "MAIN", wantOK: false},
		{name: "direct child of root", path: "MAIN/A", wantParent: "MAIN", wantOK: true},
		{name: "deep child", path: "MAIN/A/B", wantParent: "MAIN/A", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, ok := Parent(tt.path)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantParent, parent)
			}
		})
	}
}

func TestIsAncestor(t *testing.T) {
	assert.True(t, IsAncestor("MAIN", "MAIN/A"))
	assert.True(t, IsAncestor("MAIN", "MAIN/A/B"))
	assert.True(t, IsAncestor("MAIN/A", "MAIN/A/B"))
	assert.False(t, IsAncestor("MAIN/A", "MAIN/AB"))
	assert.False(t, IsAncestor("MAIN/A", "MAIN/A"))
	assert.False(t, IsAncestor("MAIN/A/B", "MAIN/A"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("MAIN"))
	assert.NoError(t, Validate("MAIN/feature-1"))
	assert.ErrorIs(t, Validate(""), errEmptyPath)
	assert.ErrorIs(t, Validate("MAIN/has_underscore"), errUnderscoreInPath)
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 1, Depth("MAIN"))
	assert.Equal(t, 2, Depth("MAIN/A"))
	assert.Equal(t, 3, Depth("MAIN/A/B"))
}

func FuzzValidate(f *testing.F) {
	f.Add("MAIN")
	f.Add("MAIN/A/B")
	f.Add("")
	f.Add("has_underscore")
	f.Fuzz(func(t *testing.T, path string) {
		err := Validate(path)
		if err == nil {
			assert.NotContains(t, path, "_")
			assert.NotEmpty(t, path)
		}
	})
}
